// spherepack generates dense random sphere packings in bounded domains and
// optionally bins them onto a regular lattice.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/zzmjohn/openmc/internal/config"
	"github.com/zzmjohn/openmc/internal/logger"
	"github.com/zzmjohn/openmc/pkg/lattice"
	"github.com/zzmjohn/openmc/pkg/pack"
	"github.com/zzmjohn/openmc/pkg/script"
)

func main() {
	config.ParseFlags()

	if config.InitConfigRequested() {
		if err := config.Default().Save(); err != nil {
			fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Wrote default config to %s\n",
			filepath.Join(config.ConfigDir(), "spherepack.yaml"))
		return
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		fmt.Fprintf(os.Stderr, "Logger error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	var runErr error
	if cfg.Script != "" {
		runErr = runScript(cfg.Script)
	} else {
		runErr = runPipeline(cfg)
	}
	if runErr != nil {
		logger.Log.Error("spherepack failed", zap.Error(runErr))
		logger.Sync()
		os.Exit(1)
	}
}

// runScript evaluates a packing script and logs what it built.
func runScript(path string) error {
	source, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading script: %w", err)
	}

	eng := script.NewEngine(logger.Log)
	model, evalErrs, err := eng.Evaluate(string(source))
	if err != nil {
		return fmt.Errorf("evaluating %s: %w", path, err)
	}
	if len(evalErrs) > 0 {
		for _, e := range evalErrs {
			logger.Log.Error("script error",
				zap.String("path", path),
				zap.String("detail", e.Error()))
		}
		return fmt.Errorf("%s: %d script error(s)", path, len(evalErrs))
	}

	for i, res := range model.Packings {
		logger.Log.Info("packing complete",
			zap.Int("index", i),
			zap.Int("spheres", len(res.Spheres)),
			zap.Float64("fraction", res.Fraction),
			zap.Int("attempts", res.Attempts))
	}
	for i, asm := range model.Lattices {
		logger.Log.Info("lattice complete",
			zap.Int("index", i),
			zap.String("shape", shapeString(asm.Spec.Shape)),
			zap.Int("spheres", asm.TotalSpheres()))
	}
	return nil
}

// runPipeline executes the configured domain -> pack -> lattice flow.
func runPipeline(cfg *config.Config) error {
	dom, err := cfg.Domain.Build()
	if err != nil {
		return err
	}

	p, err := pack.New(pack.Config{
		Radius:      cfg.Packing.Radius,
		Fraction:    cfg.Packing.Fraction,
		Fill:        fillToken(cfg.Packing.Fill),
		Seed:        cfg.Packing.Seed,
		MaxAttempts: cfg.Packing.MaxAttempts,
		BestEffort:  cfg.Packing.BestEffort,
		Logger:      logger.Log,
	})
	if err != nil {
		return err
	}

	res, err := p.Pack(dom)
	if err != nil {
		return err
	}

	logger.Log.Info("packing complete",
		zap.Int("spheres", len(res.Spheres)),
		zap.Float64("fraction", res.Fraction),
		zap.Int("attempts", res.Attempts))

	if cfg.Lattice != nil {
		asm, err := lattice.Bin(res.Spheres, cfg.Lattice.Spec(), fillToken(cfg.Lattice.Background))
		if err != nil {
			return err
		}
		logger.Log.Info("lattice complete",
			zap.String("shape", shapeString(asm.Spec.Shape)),
			zap.Int("cells", len(asm.Cells())),
			zap.Int("spheres", asm.TotalSpheres()))
	}

	if cfg.Output != "" {
		if err := writeResult(cfg.Output, res); err != nil {
			return fmt.Errorf("writing output: %w", err)
		}
		logger.Log.Info("arrangement written", zap.String("path", cfg.Output))
	}
	return nil
}

// fillToken maps the empty config string to "no fill".
func fillToken(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func shapeString(s [3]int) string {
	return fmt.Sprintf("%dx%dx%d", s[0], s[1], s[2])
}

// sphereRecord is the YAML shape of one packed sphere.
type sphereRecord struct {
	Center [3]float64 `yaml:"center,flow"`
	Radius float64    `yaml:"radius"`
	Fill   any        `yaml:"fill,omitempty"`
}

// resultRecord is the YAML shape of a completed packing.
type resultRecord struct {
	Fraction float64        `yaml:"fraction"`
	Attempts int            `yaml:"attempts"`
	Spheres  []sphereRecord `yaml:"spheres"`
}

// writeResult dumps the packed arrangement to a YAML file.
func writeResult(path string, res *pack.Result) error {
	rec := resultRecord{
		Fraction: res.Fraction,
		Attempts: res.Attempts,
		Spheres:  make([]sphereRecord, len(res.Spheres)),
	}
	for i, s := range res.Spheres {
		rec.Spheres[i] = sphereRecord{
			Center: [3]float64{s.Center.X, s.Center.Y, s.Center.Z},
			Radius: s.Radius,
			Fill:   s.Fill,
		}
	}

	data, err := yaml.Marshal(&rec)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0644)
}
