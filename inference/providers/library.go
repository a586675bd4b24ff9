// Package providers - ONNX Runtime shared library resolution.
package providers

import (
	"fmt"
	"os"
	"runtime"
)

// LibraryPathEnv names the environment variable that overrides the ONNX
// Runtime shared library location.
const LibraryPathEnv = "ONNXRUNTIME_SHARED_LIBRARY_PATH"

// ResolveLibraryPath locates the ONNX Runtime shared library.
//
// Resolution order:
//  1. The explicit path, when given.
//  2. The ONNXRUNTIME_SHARED_LIBRARY_PATH environment variable, when set.
//  3. Well-known install locations for the current platform.
//
// An explicit or environment-provided path that does not exist is an error,
// never silently skipped.
//
// Returns:
//   - string: The path to the shared library.
//   - error: An error when no library can be found.
func ResolveLibraryPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("ONNX Runtime library not found at %s: %w", explicit, err)
		}
		return explicit, nil
	}

	if env := os.Getenv(LibraryPathEnv); env != "" {
		if _, err := os.Stat(env); err != nil {
			return "", fmt.Errorf("ONNX Runtime library not found at %s (from %s): %w", env, LibraryPathEnv, err)
		}
		return env, nil
	}

	candidates := defaultLibraryPaths()
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	return "", fmt.Errorf(
		"no ONNX Runtime library found for %s/%s (searched %v); set %s or configure an explicit path",
		runtime.GOOS, runtime.GOARCH, candidates, LibraryPathEnv,
	)
}

// defaultLibraryPaths returns well-known library locations for the current
// platform.
func defaultLibraryPaths() []string {
	switch runtime.GOOS {
	case "windows":
		return []string{
			"third_party/onnxruntime.dll",
			"onnxruntime.dll",
		}
	case "darwin":
		return []string{
			"third_party/libonnxruntime.dylib",
			"/opt/homebrew/lib/libonnxruntime.dylib",
			"/usr/local/lib/libonnxruntime.dylib",
		}
	default:
		if runtime.GOARCH == "arm64" {
			return []string{
				"third_party/onnxruntime_arm64.so",
				"/usr/lib/libonnxruntime.so",
				"/usr/local/lib/libonnxruntime.so",
			}
		}
		return []string{
			"third_party/onnxruntime.so",
			"/usr/lib/libonnxruntime.so",
			"/usr/local/lib/libonnxruntime.so",
		}
	}
}
