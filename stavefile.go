//go:build stave

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/yaklabco/stave/pkg/sh"
	"github.com/yaklabco/stave/pkg/st"
)

// Default target when running `stave` with no arguments.
var Default = Build

var Aliases = map[string]interface{}{
	"b": Build,
	"t": Test,
	"l": Lint,
	"i": Install,
	"c": Clean,
	"s": Smoke,
}

const (
	binaryName = "mtreex"
	mainPkg    = "./cmd/mtreex"
	binDir     = "bin"
)

// platforms are the release targets built by Cross.
var platforms = []string{"linux/amd64", "linux/arm64", "darwin/amd64", "darwin/arm64", "freebsd/amd64"}

// All lints, tests and builds.
func All() error {
	st.Deps(Lint, Test)
	st.Deps(Build)
	return nil
}

// Build compiles bin/mtreex for the host.
func Build() error {
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		return fmt.Errorf("creating bin directory: %w", err)
	}
	return sh.RunV("go", "build", "-ldflags", ldflags(), "-o", exe(filepath.Join(binDir, binaryName)), mainPkg)
}

// Cross builds bin/mtreex-GOOS-GOARCH for every release platform.
func Cross() error {
	flags := ldflags()
	for _, p := range platforms {
		goos, goarch, _ := strings.Cut(p, "/")
		out := filepath.Join(binDir, fmt.Sprintf("%s-%s-%s", binaryName, goos, goarch))
		if st.Verbose() {
			fmt.Printf("Building %s\n", out)
		}
		env := map[string]string{"GOOS": goos, "GOARCH": goarch, "CGO_ENABLED": "0"}
		if err := sh.RunWith(env, "go", "build", "-ldflags", flags, "-o", out, mainPkg); err != nil {
			return fmt.Errorf("building %s: %w", p, err)
		}
	}
	return nil
}

// Smoke generates a manifest of the source tree with the built binary,
// verifies the tree against it and converts it to JSON.
func Smoke() error {
	st.Deps(Build)

	tmp, err := os.MkdirTemp("", "mtreex-smoke")
	if err != nil {
		return err
	}
	defer os.RemoveAll(tmp)

	bin := exe(filepath.Join(binDir, binaryName))
	manifest := filepath.Join(tmp, "pkg.mtree")
	steps := [][]string{
		{"generate", "--no-cache", "-k", "type,mode,size,sha256", "-f", manifest, "./pkg"},
		{"verify", "--no-cache", manifest, "./pkg"},
		{"convert", "-o", "json", "--type", "file", "--limit", "5", manifest},
	}
	for _, args := range steps {
		if err := sh.RunV(bin, args...); err != nil {
			return fmt.Errorf("mtreex %s: %w", args[0], err)
		}
	}
	return nil
}

// Install copies bin/mtreex into GOBIN, GOPATH/bin or /usr/local/bin.
func Install() error {
	st.Deps(Build)

	dir, err := installDir()
	if err != nil {
		return err
	}
	src := exe(filepath.Join(binDir, binaryName))
	dst := exe(filepath.Join(dir, binaryName))
	if st.Verbose() {
		fmt.Printf("Installing %s to %s\n", src, dst)
	}
	return sh.Copy(dst, src)
}

// Uninstall removes the installed binary, if any.
func Uninstall() error {
	dir, err := installDir()
	if err != nil {
		return err
	}
	target := exe(filepath.Join(dir, binaryName))
	if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
		return err
	}
	if st.Verbose() {
		fmt.Printf("Removed %s\n", target)
	}
	return nil
}

// Test runs all tests with race detection and coverage.
func Test() error {
	return sh.RunV("go", "test", "-race", "-cover", "./...")
}

// TestShort runs the parser, output and filter tests only.
func TestShort() error {
	return sh.RunV("go", "test", "-short", "./pkg/mtreex/mtree/...", "./pkg/mtreex/output/...", "./pkg/mtreex/filter/...")
}

// Lint runs golangci-lint.
func Lint() error {
	return sh.RunV("golangci-lint", "run", "./...")
}

// Clean removes build artifacts.
func Clean() error {
	return sh.Rm(binDir + "/")
}

// Fmt runs gofmt and goimports over the tree.
func Fmt() error {
	if err := sh.Run("gofmt", "-w", "."); err != nil {
		return fmt.Errorf("running gofmt: %w", err)
	}
	return sh.Run("goimports", "-w", ".")
}

// Tidy runs go mod tidy.
func Tidy() error {
	return sh.RunV("go", "mod", "tidy")
}

func installDir() (string, error) {
	gocmd := st.GoCmd()
	if bin, err := sh.Output(gocmd, "env", "GOBIN"); err != nil {
		return "", fmt.Errorf("determining GOBIN: %w", err)
	} else if bin != "" {
		return bin, nil
	}
	gopath, err := sh.Output(gocmd, "env", "GOPATH")
	if err != nil {
		return "", fmt.Errorf("determining GOPATH: %w", err)
	}
	if gopath == "" {
		return "/usr/local/bin", nil
	}
	return filepath.Join(gopath, "bin"), nil
}

func exe(path string) string {
	if runtime.GOOS == "windows" {
		return path + ".exe"
	}
	return path
}

// ldflags stamps version, commit and build date into package main.
func ldflags() string {
	version, commit := "dev", "unknown"
	if v, err := sh.Output("git", "describe", "--tags", "--always", "--dirty"); err == nil && v != "" {
		version = strings.TrimSpace(v)
	}
	if c, err := sh.Output("git", "rev-parse", "--short", "HEAD"); err == nil && c != "" {
		commit = strings.TrimSpace(c)
	}
	date := time.Now().UTC().Format(time.RFC3339)
	return fmt.Sprintf("-s -w -X main.version=%s -X main.commit=%s -X main.date=%s", version, commit, date)
}
