package mesh

import (
	"bufio"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"strconv"
	"strings"
)

// gmshElementType22 maps the linear Gmsh v2.2 element type numbers to our
// ElementType. Points and high order elements are skipped.
var gmshElementType22 = map[int]ElementType{
	1: Line,     // 2-node line
	2: Triangle, // 3-node triangle
	3: Quad,     // 4-node quadrangle
	4: Tet,      // 4-node tetrahedron
	5: Hex,      // 8-node hexahedron
	6: Prism,    // 6-node prism
	7: Pyramid,  // 5-node pyramid
}

type gmshElement struct {
	etype       ElementType
	physicalTag int
	nodes       []int // Gmsh node IDs
}

// ReadGmsh22 reads a Gmsh MSH file format version 2.2 (ASCII)
func ReadGmsh22(filename string) (*Mesh, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return ParseGmsh22(file)
}

// ParseGmsh22 parses Gmsh v2.2 ASCII content. The mesh dimension is the
// highest element dimension present; lower dimensional elements become
// boundary faces named by their physical group.
func ParseGmsh22(r io.Reader) (*Mesh, error) {
	var (
		err           error
		scanner       = bufio.NewScanner(r)
		physicalNames = make(map[int]string)
		nodeIndex     = make(map[int]int)
		vertices      [][]float64
		elements      []gmshElement
		hasFormat     bool
	)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		switch line {
		case "$MeshFormat":
			hasFormat = true
			if err = readMeshFormat22(scanner); err != nil {
				return nil, err
			}
		case "$PhysicalNames":
			if err = readPhysicalNames22(scanner, physicalNames); err != nil {
				return nil, err
			}
		case "$Nodes":
			if vertices, err = readNodes22(scanner, nodeIndex); err != nil {
				return nil, err
			}
		case "$Elements":
			if elements, err = readElements22(scanner); err != nil {
				return nil, err
			}
		default:
			if strings.HasPrefix(line, "$") && !strings.HasPrefix(line, "$End") {
				// Skip sections we have no use for ($Periodic, $NodeData, ...)
				if err = skipSection(scanner, "$End"+line[1:]); err != nil {
					return nil, err
				}
			}
		}
	}
	if err = scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading file: %w", err)
	}
	if !hasFormat {
		return nil, fmt.Errorf("missing required $MeshFormat section")
	}

	dim := 0
	for _, e := range elements {
		dim = max(dim, e.etype.GetDimension())
	}
	if dim != 2 && dim != 3 {
		return nil, fmt.Errorf("no triangle or tetrahedral elements found")
	}
	msh := NewMesh(dim)
	msh.Vertices = vertices
	for _, e := range elements {
		nodes := make([]int, len(e.nodes))
		for i, id := range e.nodes {
			var ok bool
			if nodes[i], ok = nodeIndex[id]; !ok {
				return nil, fmt.Errorf("element references unknown node %d", id)
			}
		}
		switch e.etype.GetDimension() {
		case dim:
			msh.EtoV = append(msh.EtoV, nodes)
			msh.ElementTypes = append(msh.ElementTypes, e.etype)
		case dim - 1:
			name, ok := physicalNames[e.physicalTag]
			if !ok {
				name = fmt.Sprintf("boundary_%d", e.physicalTag)
			}
			msh.AddBoundaryElement(name, BoundaryElement{
				ElementType: e.etype,
				Nodes:       nodes,
			})
		}
	}
	var i int
	for _, name := range slices.Sorted(maps.Keys(msh.BoundaryElements)) {
		msh.BoundaryTags[i] = name
		i++
	}
	if err = msh.Finalize(); err != nil {
		return nil, err
	}
	return msh, nil
}

func readMeshFormat22(scanner *bufio.Scanner) error {
	if !scanner.Scan() {
		return fmt.Errorf("unexpected EOF in MeshFormat")
	}
	parts := strings.Fields(scanner.Text())
	if len(parts) < 3 {
		return fmt.Errorf("invalid MeshFormat line")
	}
	if !strings.HasPrefix(parts[0], "2.") {
		return fmt.Errorf("unsupported Gmsh format version: %s", parts[0])
	}
	if parts[1] != "0" {
		return fmt.Errorf("binary Gmsh files are not supported")
	}
	return skipSection(scanner, "$EndMeshFormat")
}

func readPhysicalNames22(scanner *bufio.Scanner, names map[int]string) error {
	if !scanner.Scan() {
		return fmt.Errorf("unexpected EOF in PhysicalNames")
	}
	numNames, err := strconv.Atoi(strings.TrimSpace(scanner.Text()))
	if err != nil {
		return fmt.Errorf("invalid PhysicalNames count: %w", err)
	}
	for i := 0; i < numNames; i++ {
		if !scanner.Scan() {
			return fmt.Errorf("unexpected EOF reading physical names")
		}
		parts := strings.Fields(scanner.Text())
		if len(parts) < 3 {
			return fmt.Errorf("invalid physical name line: %q", scanner.Text())
		}
		tag, err := strconv.Atoi(parts[1])
		if err != nil {
			return fmt.Errorf("invalid physical tag: %w", err)
		}
		// Names may contain spaces
		names[tag] = strings.Trim(strings.Join(parts[2:], " "), "\"")
	}
	return skipSection(scanner, "$EndPhysicalNames")
}

func readNodes22(scanner *bufio.Scanner, nodeIndex map[int]int) (vertices [][]float64, err error) {
	if !scanner.Scan() {
		return nil, fmt.Errorf("unexpected EOF in Nodes")
	}
	numNodes, err := strconv.Atoi(strings.TrimSpace(scanner.Text()))
	if err != nil {
		return nil, fmt.Errorf("invalid Nodes count: %w", err)
	}
	vertices = make([][]float64, 0, numNodes)
	for i := 0; i < numNodes; i++ {
		if !scanner.Scan() {
			return nil, fmt.Errorf("unexpected EOF reading nodes")
		}
		parts := strings.Fields(scanner.Text())
		if len(parts) < 4 {
			return nil, fmt.Errorf("invalid node line: %s", scanner.Text())
		}
		var nodeID int
		if nodeID, err = strconv.Atoi(parts[0]); err != nil {
			return nil, fmt.Errorf("invalid node ID: %w", err)
		}
		coords := make([]float64, 3)
		for j := range coords {
			if coords[j], err = strconv.ParseFloat(parts[1+j], 64); err != nil {
				return nil, fmt.Errorf("invalid coordinate: %w", err)
			}
		}
		nodeIndex[nodeID] = len(vertices)
		vertices = append(vertices, coords)
	}
	return vertices, skipSection(scanner, "$EndNodes")
}

func readElements22(scanner *bufio.Scanner) (elements []gmshElement, err error) {
	if !scanner.Scan() {
		return nil, fmt.Errorf("unexpected EOF in Elements")
	}
	numElements, err := strconv.Atoi(strings.TrimSpace(scanner.Text()))
	if err != nil {
		return nil, fmt.Errorf("invalid Elements count: %w", err)
	}
	for i := 0; i < numElements; i++ {
		if !scanner.Scan() {
			return nil, fmt.Errorf("unexpected EOF reading elements")
		}
		parts := strings.Fields(scanner.Text())
		if len(parts) < 3 {
			return nil, fmt.Errorf("invalid element line: %q", scanner.Text())
		}
		ints := make([]int, len(parts))
		for j, p := range parts {
			if ints[j], err = strconv.Atoi(p); err != nil {
				return nil, fmt.Errorf("invalid element line %q: %w", scanner.Text(), err)
			}
		}
		elemID, elemType, numTags := ints[0], ints[1], ints[2]
		etype, ok := gmshElementType22[elemType]
		if !ok {
			continue
		}
		nodeStart := 3 + numTags
		if len(ints) < nodeStart+etype.GetNumNodes() {
			return nil, fmt.Errorf("element %d: expected %d nodes, got %d",
				elemID, etype.GetNumNodes(), len(ints)-nodeStart)
		}
		e := gmshElement{
			etype: etype,
			nodes: ints[nodeStart : nodeStart+etype.GetNumNodes()],
		}
		if numTags > 0 {
			e.physicalTag = ints[3]
		}
		elements = append(elements, e)
	}
	return elements, skipSection(scanner, "$EndElements")
}

func skipSection(scanner *bufio.Scanner, endMarker string) error {
	for scanner.Scan() {
		if strings.TrimSpace(scanner.Text()) == endMarker {
			return nil
		}
	}
	return fmt.Errorf("unexpected EOF looking for %s", endMarker)
}
