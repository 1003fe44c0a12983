package visualization

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"

	"tissuemap/pkg/colormap"
	"tissuemap/pkg/voxel"
)

// lookup precomputes the RGBA color of every possible tissue id
func lookup(view *View, hideMissing bool) *[256]color.RGBA {
	var lut [256]color.RGBA
	for id := range lut {
		a := view.Alpha(uint8(id), hideMissing)
		if a == 0 {
			continue
		}
		lut[id] = colormap.ToRGBA(view.Color(uint8(id)), a)
	}
	return &lut
}

// SliceImage colors one plane of the label volume with the view. Background
// voxels are transparent; tissues without data are gray.
//
// axis x gives a (depth x height) image, y a (width x depth) image and z a
// (width x height) image.
func SliceImage(vol *voxel.Volume, view *View, axis string, position int) (*image.RGBA, error) {
	return sliceImage(vol, view, axis, position, false)
}

// SliceImageHidden is SliceImage with tissues lacking data made transparent
func SliceImageHidden(vol *voxel.Volume, view *View, axis string, position int) (*image.RGBA, error) {
	return sliceImage(vol, view, axis, position, true)
}

func sliceImage(vol *voxel.Volume, view *View, axis string, position int, hideMissing bool) (*image.RGBA, error) {
	if position < 0 {
		return nil, fmt.Errorf("position must be non-negative")
	}
	if err := vol.Validate(); err != nil {
		return nil, err
	}
	width, height, depth := vol.Dims[0], vol.Dims[1], vol.Dims[2]
	lut := lookup(view, hideMissing)

	var img *image.RGBA
	switch axis {
	case "x", "X":
		// YZ plane
		if position >= width {
			return nil, fmt.Errorf("position %d exceeds width %d", position, width)
		}
		img = image.NewRGBA(image.Rect(0, 0, depth, height))
		for y := 0; y < height; y++ {
			for z := 0; z < depth; z++ {
				img.SetRGBA(z, y, lut[vol.Labels[vol.Index(position, y, z)]])
			}
		}

	case "y", "Y":
		// XZ plane
		if position >= height {
			return nil, fmt.Errorf("position %d exceeds height %d", position, height)
		}
		img = image.NewRGBA(image.Rect(0, 0, width, depth))
		for z := 0; z < depth; z++ {
			for x := 0; x < width; x++ {
				img.SetRGBA(x, z, lut[vol.Labels[vol.Index(x, position, z)]])
			}
		}

	case "z", "Z":
		// XY plane
		if position >= depth {
			return nil, fmt.Errorf("position %d exceeds depth %d", position, depth)
		}
		img = image.NewRGBA(image.Rect(0, 0, width, height))
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				img.SetRGBA(x, y, lut[vol.Labels[vol.Index(x, y, position)]])
			}
		}

	default:
		return nil, fmt.Errorf("invalid axis: %s (must be x, y, or z)", axis)
	}

	return img, nil
}

// Colorbar renders the palette as a ramp. A wide image runs left to right,
// a tall one bottom to top.
func Colorbar(p colormap.Palette, width, height int) (*image.RGBA, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("colorbar size must be positive, got %dx%d", width, height)
	}
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	horizontal := width >= height

	steps := height
	if horizontal {
		steps = width
	}
	for i := 0; i < steps; i++ {
		t := 0.0
		if steps > 1 {
			t = float64(i) / float64(steps-1)
		}
		c := colormap.ToRGBA(p.At(t), 255)
		if horizontal {
			for y := 0; y < height; y++ {
				img.SetRGBA(i, y, c)
			}
		} else {
			for x := 0; x < width; x++ {
				img.SetRGBA(x, height-1-i, c)
			}
		}
	}
	return img, nil
}

// SavePNG writes an image as PNG, creating parent directories
func SavePNG(img image.Image, filename string) error {
	if err := os.MkdirAll(filepath.Dir(filename), 0755); err != nil {
		return err
	}
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	if err := png.Encode(file, img); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

// SaveSliceSequence renders and saves every slice along the axis as
// slice_<axis>_<nnn>.png
func SaveSliceSequence(vol *voxel.Volume, view *View, axis string, outputDir string) error {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return err
	}

	var maxPos int
	switch axis {
	case "x", "X":
		maxPos = vol.Dims[0]
	case "y", "Y":
		maxPos = vol.Dims[1]
	case "z", "Z":
		maxPos = vol.Dims[2]
	default:
		return fmt.Errorf("invalid axis: %s (must be x, y, or z)", axis)
	}

	for pos := 0; pos < maxPos; pos++ {
		img, err := SliceImage(vol, view, axis, pos)
		if err != nil {
			return err
		}

		filename := filepath.Join(outputDir, fmt.Sprintf("slice_%s_%03d.png", axis, pos))
		if err := SavePNG(img, filename); err != nil {
			return err
		}
	}

	return nil
}
