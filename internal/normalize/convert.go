package normalize

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
)

// toolConverter shells out to a platform image tool to produce a JPEG from
// formats the in-process decoders reject (HEIC being the usual case).
type toolConverter struct {
	tool string
	args func(in, out string) []string
}

// PlatformConverter returns the converter for the current platform, or nil
// when no conversion tool is available on PATH.
func PlatformConverter() Converter {
	if runtime.GOOS == "darwin" {
		if path, err := exec.LookPath("sips"); err == nil {
			return &toolConverter{
				tool: path,
				args: func(in, out string) []string {
					return []string{"-s", "format", "jpeg", in, "--out", out}
				},
			}
		}
	}
	for _, tool := range []string{"magick", "convert"} {
		if path, err := exec.LookPath(tool); err == nil {
			return &toolConverter{
				tool: path,
				args: func(in, out string) []string {
					return []string{in, out}
				},
			}
		}
	}
	return nil
}

func (c *toolConverter) ToJPEG(ctx context.Context, data []byte) ([]byte, error) {
	dir, err := os.MkdirTemp("", "handscribe-convert-")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	in := filepath.Join(dir, "input")
	out := filepath.Join(dir, "output.jpg")
	if err := os.WriteFile(in, data, 0644); err != nil {
		return nil, fmt.Errorf("failed to write temp image: %w", err)
	}

	cmd := exec.CommandContext(ctx, c.tool, c.args(in, out)...)
	if output, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("%s failed: %w: %s", filepath.Base(c.tool), err, string(output))
	}

	converted, err := os.ReadFile(out)
	if err != nil {
		return nil, fmt.Errorf("failed to read converted image: %w", err)
	}
	return converted, nil
}
