package main

import (
	"bufio"
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strconv"
)

var (
	csvFile string
)

func main() {
	csvFilePtr := flag.String("csvFile", csvFile, "file containing entries of a convergence study")
	flag.Parse()
	csvFile = *csvFilePtr
	if len(csvFile) == 0 {
		flag.Usage()
		os.Exit(1)
	}
	fmt.Printf("Input file: %v\n", csvFile)
	f, err := os.Open(csvFile)
	if err != nil {
		panic(err)
	}
	defer f.Close()
	studies, err := readCSV(f)
	if err != nil {
		panic(err)
	}
	keys := make([]string, 0, len(studies))
	for k := range studies {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		cs := studies[k]
		fmt.Printf("Title = %s, Dimension = %d\n", cs.title, cs.dim)
		rmsOrder, maxOrder := cs.Orders()
		for i := range cs.n {
			fmt.Printf("%d, %v, %v, %v, %v", cs.n[i], cs.h[i], cs.vertices[i], cs.rms[i], cs.max[i])
			if i > 0 {
				fmt.Printf(", order RMS = %5.2f, order MAX = %5.2f", rmsOrder[i-1], maxOrder[i-1])
			}
			fmt.Printf("\n")
		}
	}
}

type ConvergenceStudy struct {
	title    string
	dim      int
	n        []int
	vertices []int
	h        []float64
	rms, max []float64
}

func NewConvergenceStudy(title string, dim int) *ConvergenceStudy {
	return &ConvergenceStudy{
		title: title,
		dim:   dim,
	}
}

func (cs *ConvergenceStudy) Add(n, vertices int, h, rms, max float64) {
	cs.n = append(cs.n, n)
	cs.vertices = append(cs.vertices, vertices)
	cs.h = append(cs.h, h)
	cs.rms = append(cs.rms, rms)
	cs.max = append(cs.max, max)
}

// Orders returns the observed order between each pair of consecutive levels
func (cs *ConvergenceStudy) Orders() (rmsOrder, maxOrder []float64) {
	order := func(e []float64, i int) float64 {
		return math.Log(e[i-1]/e[i]) / math.Log(cs.h[i-1]/cs.h[i])
	}
	for i := 1; i < len(cs.h); i++ {
		rmsOrder = append(rmsOrder, order(cs.rms, i))
		maxOrder = append(maxOrder, order(cs.max, i))
	}
	return
}

// readCSV groups the rows of a study by title and dimension. Columns are
// Title,Dimension,N,H,Vertices,RMSError,MaxError
func readCSV(rd io.Reader) (studies map[string]*ConvergenceStudy, err error) {
	var (
		records [][]string
		ok      bool
		cs      *ConvergenceStudy
	)
	studies = make(map[string]*ConvergenceStudy)
	r := csv.NewReader(bufio.NewReader(rd))
	if records, err = r.ReadAll(); err != nil {
		return
	}
	for i, rec := range records {
		if i == 0 {
			continue
		}
		if len(rec) != 7 {
			return nil, fmt.Errorf("line %d: expected 7 columns, got %d", i+1, len(rec))
		}
		var (
			dim, n, nv    int
			h, rms, maxE  float64
			title, dimtxt = rec[0], rec[1]
		)
		if dim, err = strconv.Atoi(dimtxt); err != nil {
			return
		}
		if n, err = strconv.Atoi(rec[2]); err != nil {
			return
		}
		if h, err = strconv.ParseFloat(rec[3], 64); err != nil {
			return
		}
		if nv, err = strconv.Atoi(rec[4]); err != nil {
			return
		}
		if rms, err = strconv.ParseFloat(rec[5], 64); err != nil {
			return
		}
		if maxE, err = strconv.ParseFloat(rec[6], 64); err != nil {
			return
		}
		combTitle := title + dimtxt
		if cs, ok = studies[combTitle]; !ok {
			cs = NewConvergenceStudy(title, dim)
			studies[combTitle] = cs
		}
		cs.Add(n, nv, h, rms, maxE)
	}
	return
}
