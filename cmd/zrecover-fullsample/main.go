// Command zrecover-fullsample recovers the redshift PDF for the full unknown
// sample, with no selection mask and no per-object weighting. This suits
// surveys with a single observed band where no selection is possible; for
// weighted or selected recoveries use zrecover instead. Requesting weights
// here logs a warning and continues unweighted.
package main

import (
	"flag"
	"log"
	"math/rand"
	"strings"
	"time"

	"github.com/crosscorr/zrecover/internal/cosmo"
	"github.com/crosscorr/zrecover/internal/output"
	"github.com/crosscorr/zrecover/internal/pairstore"
	"github.com/crosscorr/zrecover/internal/pdfmaker"
	"github.com/crosscorr/zrecover/internal/zbins"
)

type config struct {
	PairsDB string
	Scale   string
	Output  string

	ZMin    float64
	ZMax    float64
	NBins   int
	Binning string

	NBoot   int
	Seed    int64
	DrawsIn string

	UseWeights bool

	H0     float64
	OmegaM float64
}

func parseFlags() config {
	cfg := config{}

	flag.StringVar(&cfg.PairsDB, "pairs", "", "Path to the pair database (required)")
	flag.StringVar(&cfg.Scale, "scale", "", "Angular scale name to collapse (required)")
	flag.StringVar(&cfg.Output, "o", "pdf.dat", "Output path for the recovered PDF table")
	flag.Float64Var(&cfg.ZMin, "zmin", 0.01, "Minimum redshift of the recovery")
	flag.Float64Var(&cfg.ZMax, "zmax", 3.0, "Maximum redshift of the recovery")
	flag.IntVar(&cfg.NBins, "bins", 50, "Number of redshift bins")
	flag.StringVar(&cfg.Binning, "binning", "linear",
		"Binning policy: linear, logspace, comoving, adaptive, or file:<path>")
	flag.IntVar(&cfg.NBoot, "boot", 1000, "Number of bootstrap trials")
	flag.Int64Var(&cfg.Seed, "seed", 0, "Bootstrap random seed (0 = time-based)")
	flag.StringVar(&cfg.DrawsIn, "draws-in", "", "Fixed bootstrap region-draw list file")
	flag.BoolVar(&cfg.UseWeights, "use-weights", false,
		"Request catalog weights (not supported in full-sample mode; warns and continues)")
	flag.Float64Var(&cfg.H0, "h0", cosmo.Default().H0, "Hubble constant for comoving binning (km/s/Mpc)")
	flag.Float64Var(&cfg.OmegaM, "omega-m", cosmo.Default().OmegaM, "Matter density for comoving binning")

	flag.Parse()
	return cfg
}

func main() {
	cfg := parseFlags()
	if cfg.PairsDB == "" {
		log.Fatal("a pair database is required (-pairs)")
	}
	if cfg.Scale == "" {
		log.Fatal("an angular scale name is required (-scale)")
	}

	store, err := pairstore.Open(cfg.PairsDB)
	if err != nil {
		log.Fatalf("failed to open pair database: %v", err)
	}
	defer store.Close()

	log.Printf("loading pair table for scale %q...", cfg.Scale)
	refs, err := store.LoadReferences(cfg.Scale)
	if err != nil {
		log.Fatalf("failed to load pair table: %v", err)
	}

	maker := pdfmaker.New()
	if err := maker.LoadPairs(refs); err != nil {
		log.Fatalf("failed to load pairs: %v", err)
	}

	var weights pdfmaker.Weights
	if cfg.UseWeights {
		// the collapse step warns and ignores these; the load keeps the
		// failure mode identical to the weighted workflow's
		_, weights, err = store.LoadCatalog()
		if err != nil {
			log.Fatalf("failed to load catalog: %v", err)
		}
	}

	edges := buildEdges(cfg, maker)

	log.Print("collapsing full sample...")
	if err := maker.CollapseFull(weights); err != nil {
		log.Fatalf("collapse failed: %v", err)
	}

	log.Print("calculating region densities...")
	if err := maker.ComputeRegionDensities(edges, cfg.ZMax); err != nil {
		log.Fatalf("region density aggregation failed: %v", err)
	}

	log.Print("calculating pdf...")
	if cfg.DrawsIn != "" {
		draws, err := output.LoadRegionDraws(cfg.DrawsIn)
		if err != nil {
			log.Fatalf("failed to load bootstrap draws: %v", err)
		}
		if err := maker.ComputePDFFromDraws(draws); err != nil {
			log.Fatalf("bootstrap failed: %v", err)
		}
	} else {
		seed := cfg.Seed
		if seed == 0 {
			seed = time.Now().UnixNano()
		}
		if err := maker.ComputePDFBootstrap(cfg.NBoot, rand.New(rand.NewSource(seed))); err != nil {
			log.Fatalf("bootstrap failed: %v", err)
		}
	}

	res, err := maker.Result()
	if err != nil {
		log.Fatalf("failed to read result: %v", err)
	}
	log.Printf("writing %s...", cfg.Output)
	if err := output.WritePDFFile(cfg.Output, res); err != nil {
		log.Fatalf("failed to write pdf: %v", err)
	}
	if err := maker.MarkWritten(); err != nil {
		log.Fatalf("failed to finish pipeline: %v", err)
	}
	log.Print("done")
}

func buildEdges(cfg config, maker *pdfmaker.PDFMaker) zbins.Edges {
	log.Printf("creating %s bins...", cfg.Binning)
	bcfg := zbins.Config{ZMin: cfg.ZMin, ZMax: cfg.ZMax, NBins: cfg.NBins}
	policy := cfg.Binning

	if path, ok := strings.CutPrefix(policy, "file:"); ok {
		policy = "file"
		bcfg.EdgeFile = path
	}
	if policy == "adaptive" {
		refZ, err := maker.ReferenceRedshifts()
		if err != nil {
			log.Fatalf("failed to read reference redshifts: %v", err)
		}
		bcfg.RefZ = refZ
	}
	if policy == "comoving" {
		params := cosmo.Params{H0: cfg.H0, OmegaM: cfg.OmegaM}
		bcfg.Dist = params.ComovingDistance
	}

	edges, err := zbins.Build(policy, bcfg)
	if err != nil {
		log.Fatalf("binning failed: %v", err)
	}
	if policy == "file" {
		edges, err = edges.DropUpperBound()
		if err != nil {
			log.Fatalf("edge file %s: %v", bcfg.EdgeFile, err)
		}
	}
	return edges
}
