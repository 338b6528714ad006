package mesh

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// su2ElementTypeMap maps SU2/VTK element type identifiers to our ElementType
var su2ElementTypeMap = map[int]ElementType{
	3:  Line,     // VTK_LINE
	5:  Triangle, // VTK_TRIANGLE
	9:  Quad,     // VTK_QUAD
	10: Tet,      // VTK_TETRA
	12: Hex,      // VTK_HEXAHEDRON
	13: Prism,    // VTK_WEDGE
	14: Pyramid,  // VTK_PYRAMID
}

// ReadMeshFile reads a mesh file based on extension and finalizes it
func ReadMeshFile(filename string) (*Mesh, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".su2":
		return ReadSU2(filename)
	case ".msh":
		return ReadGmsh22(filename)
	default:
		return nil, fmt.Errorf("unsupported mesh format: %s", ext)
	}
}

// ReadSU2 reads an SU2 native format file
func ReadSU2(filename string) (*Mesh, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return ParseSU2(file)
}

// ParseSU2 parses SU2 native mesh content. Only triangle (NDIME= 2) and
// tetrahedral (NDIME= 3) volume elements are accepted.
func ParseSU2(r io.Reader) (*Mesh, error) {
	var (
		err                error
		msh                *Mesh
		ndime              int
		hasNDIME, hasNPOIN bool
		scanner            = bufio.NewScanner(r)
	)

	nextLine := func() (line string, ok bool) {
		for scanner.Scan() {
			line = strings.TrimSpace(scanner.Text())
			// Skip comments (text after %)
			if idx := strings.Index(line, "%"); idx >= 0 {
				line = strings.TrimSpace(line[:idx])
			}
			if line != "" {
				return line, true
			}
		}
		return "", false
	}

	for {
		line, ok := nextLine()
		if !ok {
			break
		}
		switch {
		case strings.HasPrefix(line, "NDIME="):
			hasNDIME = true
			if ndime, err = keywordInt(line, "NDIME="); err != nil {
				return nil, err
			}
			if ndime != 2 && ndime != 3 {
				return nil, fmt.Errorf("unsupported dimension: NDIME=%d", ndime)
			}
			msh = NewMesh(ndime)

		case strings.HasPrefix(line, "NPOIN="):
			if !hasNDIME {
				return nil, fmt.Errorf("NPOIN= found before NDIME=")
			}
			hasNPOIN = true
			var npoin int
			if npoin, err = keywordInt(line, "NPOIN="); err != nil {
				return nil, err
			}
			msh.Vertices = make([][]float64, npoin)
			for i := 0; i < npoin; i++ {
				if line, ok = nextLine(); !ok {
					return nil, fmt.Errorf("unexpected EOF reading nodes")
				}
				fields := strings.Fields(line)
				if len(fields) < ndime {
					return nil, fmt.Errorf("invalid node line: expected at least %d coordinates", ndime)
				}
				coords := make([]float64, 3) // Always store 3D coordinates
				for j := 0; j < ndime; j++ {
					if coords[j], err = strconv.ParseFloat(fields[j], 64); err != nil {
						return nil, fmt.Errorf("invalid coordinate: %w", err)
					}
				}
				// Node ID is implicit (0-based) based on order
				msh.Vertices[i] = coords
			}

		case strings.HasPrefix(line, "NELEM="):
			if !hasNDIME {
				return nil, fmt.Errorf("NELEM= found before NDIME=")
			}
			var nelem int
			if nelem, err = keywordInt(line, "NELEM="); err != nil {
				return nil, err
			}
			msh.EtoV = make([][]int, 0, nelem)
			msh.ElementTypes = make([]ElementType, 0, nelem)
			for i := 0; i < nelem; i++ {
				if line, ok = nextLine(); !ok {
					return nil, fmt.Errorf("unexpected EOF reading elements")
				}
				var (
					etype ElementType
					nodes []int
				)
				if etype, nodes, err = parseElement(line, su2ElementTypeMap); err != nil {
					return nil, err
				}
				msh.EtoV = append(msh.EtoV, nodes)
				msh.ElementTypes = append(msh.ElementTypes, etype)
			}

		case strings.HasPrefix(line, "NMARK="):
			if !hasNDIME {
				return nil, fmt.Errorf("NMARK= found before NDIME=")
			}
			var nmark int
			if nmark, err = keywordInt(line, "NMARK="); err != nil {
				return nil, err
			}
			for i := 0; i < nmark; i++ {
				if line, ok = nextLine(); !ok || !strings.HasPrefix(line, "MARKER_TAG=") {
					return nil, fmt.Errorf("expected MARKER_TAG= for marker %d, got: %q", i, line)
				}
				tagName := strings.TrimSpace(strings.TrimPrefix(line, "MARKER_TAG="))
				msh.BoundaryTags[i] = tagName
				if line, ok = nextLine(); !ok {
					return nil, fmt.Errorf("unexpected EOF reading marker elements for %s", tagName)
				}
				var nMarkerElems int
				if nMarkerElems, err = keywordInt(line, "MARKER_ELEMS="); err != nil {
					return nil, err
				}
				for j := 0; j < nMarkerElems; j++ {
					if line, ok = nextLine(); !ok {
						return nil, fmt.Errorf("unexpected EOF reading boundary elements")
					}
					etype, nodes, err := parseElement(line, su2ElementTypeMap)
					if err != nil {
						return nil, fmt.Errorf("marker %s: %w", tagName, err)
					}
					msh.AddBoundaryElement(tagName, BoundaryElement{
						ElementType: etype,
						Nodes:       nodes,
					})
				}
			}
		}
	}

	if err = scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading file: %w", err)
	}
	// Validate that we read the required sections
	if !hasNDIME {
		return nil, fmt.Errorf("missing required NDIME= section")
	}
	if !hasNPOIN {
		return nil, fmt.Errorf("missing required NPOIN= section")
	}
	if err = msh.Finalize(); err != nil {
		return nil, err
	}
	return msh, nil
}

func keywordInt(line, keyword string) (n int, err error) {
	if !strings.HasPrefix(line, keyword) {
		return 0, fmt.Errorf("expected %s, got: %s", keyword, line)
	}
	if n, err = strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(line, keyword))); err != nil {
		return 0, fmt.Errorf("invalid %s line: %w", keyword, err)
	}
	if n < 0 {
		return 0, fmt.Errorf("negative count in %s line: %d", keyword, n)
	}
	return
}

func parseElement(line string, typeMap map[int]ElementType) (etype ElementType, nodes []int, err error) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return 0, nil, fmt.Errorf("invalid element line: %q", line)
	}
	su2Type, err := strconv.Atoi(fields[0])
	if err != nil {
		return 0, nil, fmt.Errorf("invalid element type: %w", err)
	}
	var ok bool
	if etype, ok = typeMap[su2Type]; !ok {
		return 0, nil, fmt.Errorf("unknown element type: %d", su2Type)
	}
	numNodes := etype.GetNumNodes()
	if len(fields) < numNodes+1 {
		return 0, nil, fmt.Errorf("element type %v expects %d nodes, got %d fields",
			etype, numNodes, len(fields)-1)
	}
	nodes = make([]int, numNodes)
	for j := 0; j < numNodes; j++ {
		if nodes[j], err = strconv.Atoi(fields[1+j]); err != nil {
			return 0, nil, fmt.Errorf("invalid node index: %w", err)
		}
	}
	return
}
