package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"

	"github.com/yungbote/segbridge/internal/tensor"
)

// Generates a local artifact tree (manifest + input tensors + truth masks)
// so an evaluation run can be exercised end to end without real model
// outputs:
//
//	go run scripts/gen_fixtures.go -dir ./data/artifacts -samples 4
//	SB_ARTIFACTS_BACKEND=local SB_ARTIFACTS_DIR=./data/artifacts \
//	  go run ./cmd/evalrun -manifest manifests/smoke.json -dry-run

type sampleDoc struct {
	ID       string `json:"id"`
	InputKey string `json:"input_key"`
	TruthKey string `json:"truth_key,omitempty"`
}

type manifestDoc struct {
	Name    string      `json:"name"`
	Samples []sampleDoc `json:"samples"`
}

func main() {
	var dir string
	var samples int
	var batch, channels, depth, height, width int
	var seed int64
	var unscored bool
	flag.StringVar(&dir, "dir", "./data/artifacts", "artifact root to write into")
	flag.IntVar(&samples, "samples", 4, "number of samples")
	flag.IntVar(&batch, "batch", 1, "batch dimension")
	flag.IntVar(&channels, "channels", 1, "channel dimension (1 = binary task)")
	flag.IntVar(&depth, "depth", 8, "spatial depth")
	flag.IntVar(&height, "height", 16, "spatial height")
	flag.IntVar(&width, "width", 16, "spatial width")
	flag.Int64Var(&seed, "seed", 7, "rng seed")
	flag.BoolVar(&unscored, "unscored-last", true, "leave the last sample without a truth mask")
	flag.Parse()

	if samples < 1 {
		fmt.Println("need at least one sample")
		os.Exit(1)
	}

	rng := rand.New(rand.NewSource(seed))
	shape := []int{batch, channels, depth, height, width}

	manifest := manifestDoc{Name: "smoke"}
	for i := 0; i < samples; i++ {
		id := fmt.Sprintf("case_%03d", i+1)
		inputKey := filepath.ToSlash(filepath.Join("inputs", id+".json"))
		truthKey := filepath.ToSlash(filepath.Join("truths", id+".json"))

		input, truth, err := synthesize(rng, shape)
		if err != nil {
			fmt.Printf("synthesize %s: %v\n", id, err)
			os.Exit(1)
		}
		if err := writeWire(dir, inputKey, input); err != nil {
			fmt.Printf("write %s: %v\n", inputKey, err)
			os.Exit(1)
		}

		doc := sampleDoc{ID: id, InputKey: inputKey}
		last := i == samples-1
		if !(unscored && last) {
			if err := writeWire(dir, truthKey, truth); err != nil {
				fmt.Printf("write %s: %v\n", truthKey, err)
				os.Exit(1)
			}
			doc.TruthKey = truthKey
		}
		manifest.Samples = append(manifest.Samples, doc)
		fmt.Printf("wrote %s (truth=%v)\n", id, doc.TruthKey != "")
	}

	manifestKey := filepath.ToSlash(filepath.Join("manifests", "smoke.json"))
	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		fmt.Printf("marshal manifest: %v\n", err)
		os.Exit(1)
	}
	if err := writeFile(dir, manifestKey, data); err != nil {
		fmt.Printf("write %s: %v\n", manifestKey, err)
		os.Exit(1)
	}

	fmt.Printf("wrote %s with %d samples under %s\n", manifestKey, samples, dir)
	fmt.Printf("run with: SB_ARTIFACTS_BACKEND=local SB_ARTIFACTS_DIR=%s go run ./cmd/evalrun -manifest %s\n", dir, manifestKey)
}

// synthesize builds a probability volume with a bright blob and the discrete
// mask of the same blob as truth.
func synthesize(rng *rand.Rand, shape []int) (*tensor.Tensor, *tensor.Tensor, error) {
	input, err := tensor.Zeros(shape)
	if err != nil {
		return nil, nil, err
	}
	truth, err := tensor.Zeros(shape)
	if err != nil {
		return nil, nil, err
	}

	b, c := shape[0], shape[1]
	spatial := 1
	for _, d := range shape[2:] {
		spatial *= d
	}
	in := input.Data()
	tr := truth.Data()
	center := rng.Intn(spatial)
	radius := spatial / 8
	if radius < 1 {
		radius = 1
	}
	for bi := 0; bi < b; bi++ {
		for ci := 0; ci < c; ci++ {
			base := (bi*c + ci) * spatial
			for v := 0; v < spatial; v++ {
				dist := center - v
				if dist < 0 {
					dist = -dist
				}
				if dist <= radius {
					in[base+v] = 0.6 + 0.4*rng.Float32()
					tr[base+v] = 1
				} else {
					in[base+v] = 0.4 * rng.Float32()
				}
			}
		}
	}
	return input, truth, nil
}

func writeWire(root, key string, t *tensor.Tensor) error {
	data, err := json.Marshal(tensor.ToWire(t))
	if err != nil {
		return err
	}
	return writeFile(root, key, data)
}

func writeFile(root, key string, data []byte) error {
	path := filepath.Join(root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
