// Command zrecover recovers the redshift PDF of a photometric sample from
// its angular clustering against a spectroscopic reference sample. It reads
// the precomputed pair database, applies the unknown-sample selection mask
// and weights, collapses the pairs to per-reference clustering amplitudes,
// bins them in redshift, and estimates the PDF and its error by bootstrap
// resampling of the spatial regions.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"strings"
	"time"

	"github.com/crosscorr/zrecover/internal/cosmo"
	"github.com/crosscorr/zrecover/internal/output"
	"github.com/crosscorr/zrecover/internal/pairstore"
	"github.com/crosscorr/zrecover/internal/pdfmaker"
	"github.com/crosscorr/zrecover/internal/zbins"
)

// Config holds the run configuration assembled from flags.
type Config struct {
	PairsDB string
	Scale   string
	Output  string

	ZMin    float64
	ZMax    float64
	NBins   int
	Binning string // policy name, or file:<path>

	NBoot   int
	Seed    int64
	DrawsIn string
	Workers int

	ResumeRun    string
	SaveSnapshot bool
	SaveDraws    bool
	DrawsOut     string
	BootOut      string
	JSONOut      string
	PlotOut      string
	ChartOut     string

	H0     float64
	OmegaM float64
}

func parseFlags() Config {
	cfg := Config{}

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
	flag.StringVar(&cfg.DrawsIn, "draws-in", "",
		"Fixed bootstrap region-draw list file; overrides -boot/-seed for a reproducible run")
	flag.IntVar(&cfg.Workers, "workers", 0, "Collapse worker count (0 = all CPUs)")

	flag.StringVar(&cfg.ResumeRun, "resume", "",
		"Resume from a stored region-density snapshot by run ID, skipping collapse")
	flag.BoolVar(&cfg.SaveSnapshot, "save-regions", false,
		"Store the region-density matrix in the pair database for later resume")
	flag.BoolVar(&cfg.SaveDraws, "save-draws", false,
		"Store the bootstrap region draws in the pair database")
	flag.StringVar(&cfg.DrawsOut, "draws-out", "", "Also write the region draws to a text file")
	flag.StringVar(&cfg.BootOut, "boot-out", "", "Write the full bin x trial bootstrap matrix")
	flag.StringVar(&cfg.JSONOut, "json", "", "Write the recovered PDF as JSON")
	flag.StringVar(&cfg.PlotOut, "plot", "", "Render the recovered PDF to an image file")
	flag.StringVar(&cfg.ChartOut, "chart", "", "Render the recovered PDF to an HTML chart")

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
	if cfg.ResumeRun == "" && cfg.Scale == "" {
		log.Fatal("an angular scale name is required (-scale)")
	}

	store, err := pairstore.Open(cfg.PairsDB)
	if err != nil {
		log.Fatalf("failed to open pair database: %v", err)
	}
	defer store.Close()

	maker := pdfmaker.New()

	if cfg.ResumeRun != "" {
		matrix, err := store.LoadRegionSnapshot(cfg.ResumeRun)
		if err != nil {
			log.Fatalf("failed to load region snapshot: %v", err)
		}
		if err := maker.RestoreRegionDensities(matrix); err != nil {
			log.Fatalf("failed to restore region densities: %v", err)
		}
		log.Printf("resumed run %s: %d regions, %d bins", cfg.ResumeRun, matrix.NRegions(), matrix.NBins())
	} else {
		runPipeline(cfg, store, maker)
	}

	runBootstrap(cfg, store, maker)
	writeResults(cfg, maker)
}

// runPipeline loads pairs and catalog, builds the bin edges, collapses, and
// aggregates region densities.
func runPipeline(cfg Config, store *pairstore.Store, maker *pdfmaker.PDFMaker) {
	log.Printf("loading pair table for scale %q...", cfg.Scale)
	refs, err := store.LoadReferences(cfg.Scale)
	if err != nil {
		log.Fatalf("failed to load pair table: %v", err)
	}
	if err := maker.LoadPairs(refs); err != nil {
		log.Fatalf("failed to load pairs: %v", err)
	}
	log.Printf("loaded %d reference objects", len(refs))

	log.Print("loading unknown-sample catalog...")
	mask, weights, err := store.LoadCatalog()
	if err != nil {
		log.Fatalf("failed to load catalog: %v", err)
	}

	edges := buildEdges(cfg, maker)

	log.Print("collapsing pair indices...")
	opts := pdfmaker.CollapseOptions{Workers: cfg.Workers}
	if err := maker.Collapse(context.Background(), mask, weights, opts); err != nil {
		log.Fatalf("collapse failed: %v", err)
	}

	log.Print("calculating region densities...")
	if err := maker.ComputeRegionDensities(edges, cfg.ZMax); err != nil {
		log.Fatalf("region density aggregation failed: %v", err)
	}

	if cfg.SaveSnapshot {
		matrix, err := maker.RegionMatrix()
		if err != nil {
			log.Fatalf("failed to read region matrix: %v", err)
		}
		runID, err := store.SaveRegionSnapshot(matrix)
		if err != nil {
			log.Fatalf("failed to save region snapshot: %v", err)
		}
		log.Printf("region snapshot stored under run %s", runID)
	}
}

// buildEdges resolves the binning policy. An unrecognized policy name falls
// back to linear binning with a warning rather than aborting.
func buildEdges(cfg Config, maker *pdfmaker.PDFMaker) zbins.Edges {
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
		// edge files carry a trailing upper bound; drop it so the last
		// entry is the upper edge of the final bin
		edges, err = edges.DropUpperBound()
		if err != nil {
			log.Fatalf("edge file %s: %v", bcfg.EdgeFile, err)
		}
	}
	return edges
}

// runBootstrap computes the PDF either from a fixed draw list or from fresh
// random draws.
func runBootstrap(cfg Config, store *pairstore.Store, maker *pdfmaker.PDFMaker) {
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
		rng := rand.New(rand.NewSource(seed))
		if err := maker.ComputePDFBootstrap(cfg.NBoot, rng); err != nil {
			log.Fatalf("bootstrap failed: %v", err)
		}
	}

	if cfg.SaveDraws || cfg.DrawsOut != "" {
		draws, err := maker.Draws()
		if err != nil {
			log.Fatalf("failed to read bootstrap draws: %v", err)
		}
		if cfg.SaveDraws {
			runID := cfg.ResumeRun
			if runID == "" {
				runID = time.Now().UTC().Format("20060102T150405Z")
			}
			if err := store.SaveBootstrapDraws(runID, draws); err != nil {
				log.Fatalf("failed to save bootstrap draws: %v", err)
			}
			log.Printf("bootstrap draws stored under run %s", runID)
		}
		if cfg.DrawsOut != "" {
			if err := output.WriteRegionDrawsFile(cfg.DrawsOut, draws); err != nil {
				log.Fatalf("failed to write bootstrap draws: %v", err)
			}
		}
	}
}

func writeResults(cfg Config, maker *pdfmaker.PDFMaker) {
	res, err := maker.Result()
	if err != nil {
		log.Fatalf("failed to read result: %v", err)
	}

	log.Printf("writing %s...", cfg.Output)
	if err := output.WritePDFFile(cfg.Output, res); err != nil {
		log.Fatalf("failed to write pdf: %v", err)
	}
	if cfg.BootOut != "" {
		if err := output.WriteBootstrapTrialsFile(cfg.BootOut, res); err != nil {
			log.Fatalf("failed to write bootstrap matrix: %v", err)
		}
	}
	if cfg.JSONOut != "" {
		if err := writeJSONFile(cfg.JSONOut, res); err != nil {
			log.Fatalf("failed to write json: %v", err)
		}
	}
	if cfg.PlotOut != "" {
		if err := output.PlotPDF(cfg.PlotOut, res); err != nil {
			log.Fatalf("failed to render plot: %v", err)
		}
	}
	if cfg.ChartOut != "" {
		if err := output.ChartPDF(cfg.ChartOut, res); err != nil {
			log.Fatalf("failed to render chart: %v", err)
		}
	}
	if err := maker.MarkWritten(); err != nil {
		log.Fatalf("failed to finish pipeline: %v", err)
	}
	log.Print("done")
}

func writeJSONFile(path string, res *pdfmaker.PDFResult) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create json output %s: %w", path, err)
	}
	defer f.Close()
	return output.WriteJSON(f, res)
}
