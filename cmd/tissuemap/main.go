package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"tissuemap/internal/models"
	"tissuemap/pkg/config"
	"tissuemap/pkg/mesh"
	"tissuemap/pkg/ply"
	"tissuemap/pkg/properties"
	"tissuemap/pkg/stats"
	"tissuemap/pkg/visualization"
	"tissuemap/pkg/voxel"
)

func main() {
	// Parse command line arguments
	configPath := flag.String("config", "tissuemap.yaml", "YAML configuration file")
	initConfig := flag.Bool("init-config", false, "Write a default configuration file to -config and exit")
	propertiesPath := flag.String("properties", "", "Tissue property database (JSON)")
	labelsPath := flag.String("labels", "", "Tissue label table (JSON)")
	meshPath := flag.String("mesh", "", "Merged PLY mesh with per-vertex tissue ids")
	volumePath := flag.String("volume", "", "VTI tissue label volume")
	relabelPath := flag.String("relabel", "", "Simplified PLY mesh to relabel from -mesh")
	modeName := flag.String("mode", "", "Visualization mode (tissue, density, conductivity, ...)")
	frequency := flag.Float64("frequency", 0, "Frequency in Hz for dispersion-derived modes")
	outputDir := flag.String("output", "", "Output directory")
	workers := flag.Int("workers", 0, "Goroutines used to decompose the mesh (default: all available)")
	weighted := flag.Bool("weighted", false, "Weight statistics by voxel count")
	robust := flag.Bool("robust", false, "Use IQR bounds instead of the raw range")
	sequence := flag.Bool("slices", false, "Save every slice along the configured axis")
	saveVolume := flag.Bool("save-volume", false, "Write the remapped and downsampled volume as VTI")
	flag.Parse()

	if *initConfig {
		if err := config.CreateDefaultConfigFile(*configPath); err != nil {
			log.Fatalf("Failed to create config file: %v", err)
		}
		fmt.Printf("Default configuration written to: %s\n", *configPath)
		return
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Flags given on the command line override the config file
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "properties":
			cfg.Inputs.Properties = *propertiesPath
		case "labels":
			cfg.Inputs.Labels = *labelsPath
		case "mesh":
			cfg.Inputs.Mesh = *meshPath
		case "volume":
			cfg.Inputs.Volume = *volumePath
		case "mode":
			cfg.Display.Mode = *modeName
		case "frequency":
			cfg.Display.Frequency = *frequency
		case "output":
			cfg.Output.Dir = *outputDir
		case "workers":
			cfg.Processing.NumCores = *workers
		case "weighted":
			cfg.Display.Weighted = *weighted
		case "robust":
			cfg.Display.Robust = *robust
		case "slices":
			cfg.Output.SaveSequence = *sequence
		case "save-volume":
			cfg.Output.SaveVolume = *saveVolume
		}
	})
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	if cfg.Inputs.Labels == "" {
		flag.Usage()
		os.Exit(1)
	}

	fmt.Println("================================")
	fmt.Println("TISSUE PROPERTY MAPPING")
	fmt.Println("================================")
	startTime := time.Now()

	labels, err := properties.LoadLabelsFile(cfg.Inputs.Labels)
	if err != nil {
		log.Fatalf("Failed to load labels: %v", err)
	}
	fmt.Printf("Loaded %d tissue labels from %s\n", labels.Len(), cfg.Inputs.Labels)

	var db *properties.Database
	if cfg.Inputs.Properties != "" {
		db, err = properties.LoadFile(cfg.Inputs.Properties)
		if err != nil {
			log.Fatalf("Failed to load property database: %v", err)
		}
		fmt.Printf("Loaded %d tissues from %s\n", db.Len(), cfg.Inputs.Properties)
		reportUnmatched(db, labels)
	}

	if cfg.Inputs.Mesh != "" {
		if err := processMesh(cfg, labels, *relabelPath); err != nil {
			log.Fatalf("Mesh processing failed: %v", err)
		}
	}

	var vol *voxel.Volume
	if cfg.Inputs.Volume != "" {
		vol, err = loadVolume(cfg)
		if err != nil {
			log.Fatalf("Failed to load volume: %v", err)
		}
	}

	mode, err := visualization.ParseMode(cfg.Display.Mode)
	if err != nil {
		log.Fatalf("Invalid mode: %v", err)
	}
	if _, needsData := mode.Property(); needsData && db == nil {
		log.Fatalf("Mode %s needs a property database (-properties)", mode)
	}

	ctx, err := buildContext(cfg, db, labels, vol)
	if err != nil {
		log.Fatalf("Failed to configure display: %v", err)
	}

	view, err := ctx.Resolve(mode)
	if err != nil {
		log.Fatalf("Failed to resolve mode %s: %v", mode, err)
	}
	printView(view, ctx)

	if err := writeOutputs(cfg, view, vol); err != nil {
		log.Fatalf("Failed to write outputs: %v", err)
	}

	fmt.Printf("\nCompleted in %.2f seconds. Results saved to: %s\n", time.Since(startTime).Seconds(), cfg.Output.Dir)
}

// reportUnmatched warns about labels the property database does not know
func reportUnmatched(db *properties.Database, labels *properties.Labels) {
	for _, id := range labels.IDs() {
		t, _ := labels.Get(id)
		if _, ok := db.Lookup(t.Name); !ok {
			log.Printf("Warning: tissue %d (%s) has no entry in the property database", id, t.Name)
		}
	}
}

func processMesh(cfg *config.Config, labels *properties.Labels, relabelPath string) error {
	fmt.Printf("\nDecoding mesh %s...\n", cfg.Inputs.Mesh)
	m, err := ply.ReadFile(cfg.Inputs.Mesh)
	if err != nil {
		return err
	}
	fmt.Printf("Read %d vertices and %d faces\n", len(m.Vertices), len(m.Faces))

	if cfg.Processing.CheckStraddling {
		if straddling := mesh.StraddlingFaces(m); len(straddling) > 0 {
			log.Printf("Warning: %d faces span more than one tissue and are assigned by their first vertex", len(straddling))
		}
	}

	subs, err := mesh.DecomposeParallel(m, cfg.Processing.NumCores)
	if err != nil {
		var ie *mesh.IndexError
		if errors.As(err, &ie) {
			return fmt.Errorf("corrupt mesh, face %d: %w", ie.Face, err)
		}
		return err
	}

	box := mesh.MeshBounds(m)
	fmt.Printf("Mesh bounds: (%.1f, %.1f, %.1f) - (%.1f, %.1f, %.1f)\n",
		box.Min.X, box.Min.Y, box.Min.Z, box.Max.X, box.Max.Y, box.Max.Z)
	fmt.Printf("Decomposed into %d tissue meshes:\n", len(subs))
	for _, id := range mesh.Tissues(subs) {
		sub := subs[id]
		name := "unlabelled"
		if t, ok := labels.Get(id); ok {
			name = t.Name
		}
		c := mesh.Centroid(sub)
		fmt.Printf("  %3d %-32s %8d vertices %8d faces  centroid (%.1f, %.1f, %.1f)\n",
			id, name, sub.VertexCount(), sub.FaceCount(), c.X, c.Y, c.Z)
	}

	if relabelPath == "" {
		return nil
	}
	simplified, err := ply.ReadGeometryFile(relabelPath)
	if err != nil {
		return err
	}
	mesh.Relabel(m, simplified)
	out := filepath.Join(cfg.Output.Dir, "relabelled.ply")
	if err := ply.WriteFile(out, simplified, ply.BinaryLittleEndian); err != nil {
		return err
	}
	fmt.Printf("Relabelled %d vertices of %s, saved to: %s\n", len(simplified.Vertices), relabelPath, out)
	return nil
}

func loadVolume(cfg *config.Config) (*voxel.Volume, error) {
	fmt.Printf("\nReading volume %s...\n", cfg.Inputs.Volume)
	vol, err := voxel.ReadVTIFile(cfg.Inputs.Volume)
	if err != nil {
		return nil, err
	}
	if cfg.Inputs.RemapBackground {
		if n := vol.RemapBackground(voxel.SourceBackground, models.Background); n > 0 {
			fmt.Printf("Remapped %d background voxels (value %d) to %d\n", n, voxel.SourceBackground, models.Background)
		}
	}
	if cfg.Inputs.Downsample > 1 {
		vol, err = vol.Downsample(cfg.Inputs.Downsample)
		if err != nil {
			return nil, err
		}
	}
	fmt.Printf("Volume dimensions: %dx%dx%d, spacing %.2f mm\n", vol.Dims[0], vol.Dims[1], vol.Dims[2], vol.Spacing[0])

	if cfg.Output.SaveVolume {
		name := "labels.vti"
		if cfg.Inputs.Downsample > 1 {
			name = fmt.Sprintf("labels_downsampled_%dx.vti", cfg.Inputs.Downsample)
		}
		out := filepath.Join(cfg.Output.Dir, name)
		if err := voxel.WriteVTIFile(out, vol); err != nil {
			return nil, err
		}
		fmt.Printf("Volume saved to: %s\n", out)
	}
	return vol, nil
}

func buildContext(cfg *config.Config, db *properties.Database, labels *properties.Labels, vol *voxel.Volume) (visualization.PropertyContext, error) {
	ctx := visualization.NewPropertyContext(db, labels)

	ctx, err := ctx.WithFrequency(cfg.Display.Frequency)
	if err != nil {
		return ctx, err
	}
	ctx, err = ctx.WithFieldStrength(cfg.Display.FieldStrength)
	if err != nil {
		return ctx, err
	}
	ctx = ctx.WithElement(cfg.Display.Element).
		WithCompression(cfg.Display.Compress).
		WithBoundsOptions(stats.Options{Weighted: cfg.Display.Weighted, Robust: cfg.Display.Robust})

	if vol != nil {
		ctx = ctx.WithVoxelCounts(vol.Counts())
	} else if cfg.Display.Weighted && cfg.Output.Verbose {
		log.Printf("Warning: weighted statistics need a volume; using unweighted bounds")
	}

	overrides, err := cfg.Overrides()
	if err != nil {
		return ctx, err
	}
	for m, o := range overrides {
		ctx = ctx.WithOverride(m, o)
	}
	return ctx, nil
}

func printView(view *visualization.View, ctx visualization.PropertyContext) {
	fmt.Printf("\nMode: %s\n", view.Mode)
	if view.Mode == visualization.ModeTissue {
		return
	}
	if view.Mode.FrequencyDependent() {
		fmt.Printf("Frequency: %g Hz\n", ctx.Frequency())
	}

	b := view.Bounds()
	if b.Empty() {
		log.Printf("Warning: no tissue has data for %s", view.Property)
		return
	}
	unit := view.Property.Unit()
	fmt.Printf("Tissues with data: %d of %d\n", b.Count, ctx.Labels().Len())
	fmt.Printf("Range: %.4g - %.4g %s\n", b.Min, b.Max, unit)
	fmt.Printf("Median: %.4g %s, mean: %.4g %s\n", b.Median, unit, b.Mean, unit)
	fmt.Printf("Palette: %s (log scale: %v)\n", view.Scale.Palette, view.Scale.UseLog)
}

func writeOutputs(cfg *config.Config, view *visualization.View, vol *voxel.Volume) error {
	if err := os.MkdirAll(cfg.Output.Dir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(view.Entries(cfg.Display.HideMissing), "", "  ")
	if err != nil {
		return err
	}
	colorsPath := filepath.Join(cfg.Output.Dir, "colors.json")
	if err := os.WriteFile(colorsPath, data, 0644); err != nil {
		return err
	}
	fmt.Printf("Color table saved to: %s\n", colorsPath)

	if view.Mode != visualization.ModeTissue {
		bar, err := visualization.Colorbar(view.Scale.Palette, 256, 24)
		if err != nil {
			return err
		}
		if err := visualization.SavePNG(bar, filepath.Join(cfg.Output.Dir, "colorbar.png")); err != nil {
			return err
		}
	}

	if vol == nil {
		return nil
	}

	axis := cfg.Output.SliceAxis
	mid := map[string]int{"x": vol.Dims[0] / 2, "y": vol.Dims[1] / 2, "z": vol.Dims[2] / 2}[axis]
	slice := visualization.SliceImage
	if cfg.Display.HideMissing {
		slice = visualization.SliceImageHidden
	}
	img, err := slice(vol, view, axis, mid)
	if err != nil {
		return err
	}
	slicePath := filepath.Join(cfg.Output.Dir, fmt.Sprintf("slice_%s_%s.png", view.Mode, axis))
	if err := visualization.SavePNG(img, slicePath); err != nil {
		return err
	}
	fmt.Printf("Slice %s=%d saved to: %s\n", axis, mid, slicePath)

	if cfg.Output.SaveSequence {
		seqDir := filepath.Join(cfg.Output.Dir, "slices", axis)
		fmt.Printf("Saving %s-axis slices to: %s\n", axis, seqDir)
		if err := visualization.SaveSliceSequence(vol, view, axis, seqDir); err != nil {
			log.Printf("Warning: Failed to save %s-axis slices: %v", axis, err)
		}
	}
	return nil
}
