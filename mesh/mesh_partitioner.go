package mesh

import (
	"fmt"
	"math"

	metis "github.com/notargets/go-metis"
	"go.uber.org/zap"
)

// PartitionConfig holds configuration for mesh partitioning
type PartitionConfig struct {
	NumPartitions   int32
	ImbalanceFactor float32 // e.g., 1.05 for 5% imbalance
	Objective       string  // "cut" or "vol"
}

// DefaultPartitionConfig returns default partitioning configuration
func DefaultPartitionConfig(nparts int32) *PartitionConfig {
	return &PartitionConfig{
		NumPartitions:   nparts,
		ImbalanceFactor: 1.05,
		Objective:       "vol", // minimize communication volume
	}
}

// Partition is one piece of a partitioned mesh. Its Mesh holds every element
// touching a vertex the partition owns, so owned vertices see their complete
// element star, plus halo copies of the remaining vertices of those elements.
type Partition struct {
	Rank     int
	Mesh     *Mesh
	Elements []int // Source mesh index of each local element
	Vertices []int // Source mesh index of each local vertex

	// Halo exchange lists, keyed by neighbor rank. Send holds local indices of
	// owned vertices that the neighbor keeps a halo copy of, Recv the local
	// halo vertices owned by the neighbor. Both are ordered by global vertex
	// index, so Send[q] on this rank lines up with Recv[rank] on rank q.
	Send map[int][]int
	Recv map[int][]int
}

// MeshPartitioner partitions the element dual graph with METIS
type MeshPartitioner struct {
	mesh   *Mesh
	config *PartitionConfig
	logger *zap.Logger
}

// NewMeshPartitioner creates a new partitioner for the given mesh
func NewMeshPartitioner(mesh *Mesh, config *PartitionConfig, logger *zap.Logger) *MeshPartitioner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MeshPartitioner{
		mesh:   mesh,
		config: config,
		logger: logger,
	}
}

// Partition assigns every element to a partition and splits the mesh
func (mp *MeshPartitioner) Partition() (parts []*Partition, err error) {
	var (
		nparts = int(mp.config.NumPartitions)
		EToP   []int
	)
	if nparts < 1 {
		return nil, fmt.Errorf("number of partitions must be positive, got %d", nparts)
	}
	mp.logger.Info("partitioning mesh",
		zap.Int("elements", mp.mesh.NumElements), zap.Int("parts", nparts))
	if nparts == 1 {
		EToP = make([]int, mp.mesh.NumElements)
	} else if EToP, err = mp.metisPartition(); err != nil {
		return
	}
	if parts, err = Split(mp.mesh, EToP, nparts); err != nil {
		return
	}
	mp.analyzePartition(parts)
	return
}

func (mp *MeshPartitioner) metisPartition() (EToP []int, err error) {
	// Build METIS graph
	xadj, adjncy := mp.buildMetisGraph()

	// Set METIS options
	opts := make([]int32, metis.NoOptions)
	if err = metis.SetDefaultOptions(opts); err != nil {
		return nil, fmt.Errorf("failed to set METIS options: %w", err)
	}
	if mp.config.Objective == "vol" {
		opts[metis.OptionObjType] = metis.ObjTypeVol
	} else {
		opts[metis.OptionObjType] = metis.ObjTypeCut
	}
	ubvec := []float32{mp.config.ImbalanceFactor}

	// Every element costs the same in the recovery sweeps, so no weights
	part, objval, err := metis.PartGraphKwayWeighted(
		xadj, adjncy, nil, nil,
		mp.config.NumPartitions, nil, ubvec, opts,
	)
	if err != nil {
		return nil, fmt.Errorf("METIS partitioning failed: %w", err)
	}
	mp.logger.Debug("METIS partition complete", zap.Int32("objective", objval))
	EToP = make([]int, mp.mesh.NumElements)
	for i := range EToP {
		EToP[i] = int(part[i])
	}
	return
}

// buildMetisGraph converts element face connectivity to METIS CSR format
func (mp *MeshPartitioner) buildMetisGraph() (xadj, adjncy []int32) {
	ne := mp.mesh.NumElements
	xadj = make([]int32, ne+1)
	adjncy = []int32{}
	for elem := 0; elem < ne; elem++ {
		for _, neighbor := range mp.mesh.EToE[elem] {
			if neighbor >= 0 && neighbor != elem {
				adjncy = append(adjncy, int32(neighbor))
			}
		}
		xadj[elem+1] = int32(len(adjncy))
	}
	return
}

func (mp *MeshPartitioner) analyzePartition(parts []*Partition) {
	var (
		minLoad, maxLoad = math.MaxInt, 0
		haloTotal        int
	)
	for _, p := range parts {
		owned := 0
		for _, o := range p.Mesh.Owned {
			if o {
				owned++
			}
		}
		minLoad = min(minLoad, p.Mesh.NumElements)
		maxLoad = max(maxLoad, p.Mesh.NumElements)
		haloTotal += p.Mesh.NumVertices - owned
		mp.logger.Debug("partition",
			zap.Int("rank", p.Rank),
			zap.Int("elements", p.Mesh.NumElements),
			zap.Int("owned", owned),
			zap.Int("halo", p.Mesh.NumVertices-owned),
			zap.Int("neighbors", len(p.Recv)))
	}
	mp.logger.Info("partition analysis",
		zap.Int("minElements", minLoad),
		zap.Int("maxElements", maxLoad),
		zap.Int("haloVertices", haloTotal))
}

// Split builds the partitions for an element to partition assignment. Each
// vertex is owned by the lowest ranked partition among its elements.
func Split(m *Mesh, EToP []int, nparts int) (parts []*Partition, err error) {
	if len(EToP) != m.NumElements {
		return nil, fmt.Errorf("partition map has %d entries for %d elements", len(EToP), m.NumElements)
	}
	owner := make([]int, m.NumVertices)
	for v := range owner {
		owner[v] = -1
	}
	for k, verts := range m.EtoV {
		p := EToP[k]
		if p < 0 || p >= nparts {
			return nil, fmt.Errorf("element %d assigned to partition %d out of range [0,%d)", k, p, nparts)
		}
		for _, v := range verts {
			if owner[v] < 0 || p < owner[v] {
				owner[v] = p
			}
		}
	}
	for v, p := range owner {
		if p < 0 {
			return nil, fmt.Errorf("vertex %d belongs to no element", v)
		}
	}

	parts = make([]*Partition, nparts)
	globalToLocal := make([]map[int]int, nparts)
	for p := 0; p < nparts; p++ {
		var (
			inPart  = make([]bool, m.NumVertices)
			elems   []int
			touched = make([]bool, m.NumVertices)
		)
		for v, o := range owner {
			inPart[v] = o == p
		}
		for k, verts := range m.EtoV {
			for _, v := range verts {
				if inPart[v] {
					elems = append(elems, k)
					for _, w := range verts {
						touched[w] = true
					}
					break
				}
			}
		}
		local := NewMesh(m.Dim)
		g2l := make(map[int]int)
		var verts []int
		for v, t := range touched {
			if !t {
				continue
			}
			g2l[v] = len(local.Vertices)
			verts = append(verts, v)
			local.Vertices = append(local.Vertices, append([]float64(nil), m.Vertices[v]...))
			local.DualVolume = append(local.DualVolume, m.DualVolume[v])
			local.BoundaryVertex = append(local.BoundaryVertex, m.BoundaryVertex[v])
			local.Owned = append(local.Owned, owner[v] == p)
			local.GlobalID = append(local.GlobalID, m.GlobalID[v])
		}
		for _, k := range elems {
			lv := make([]int, len(m.EtoV[k]))
			for i, v := range m.EtoV[k] {
				lv[i] = g2l[v]
			}
			local.EtoV = append(local.EtoV, lv)
			local.ElementTypes = append(local.ElementTypes, m.ElementTypes[k])
		}
		local.NumElements = len(local.EtoV)
		local.NumVertices = len(local.Vertices)
		globalToLocal[p] = g2l
		parts[p] = &Partition{
			Rank:     p,
			Mesh:     local,
			Elements: elems,
			Vertices: verts,
			Send:     make(map[int][]int),
			Recv:     make(map[int][]int),
		}
	}

	// Halo lists, walking each partition's vertices in source order
	for q, part := range parts {
		for lv, o := range part.Mesh.Owned {
			if o {
				continue
			}
			gv := part.Vertices[lv]
			r := owner[gv]
			part.Recv[r] = append(part.Recv[r], lv)
			parts[r].Send[q] = append(parts[r].Send[q], globalToLocal[r][gv])
		}
	}
	return
}
