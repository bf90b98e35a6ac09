package main

import (
	"bufio"
	"bytes"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"
)

const schemaFilename = "models_dynamodb.yaml"

// DiscoverSchemas finds the model declaration files of the current repository.
// git ls-files is tried first; outside a repository the working directory is walked.
func DiscoverSchemas() ([]string, error) {
	if files, err := discoverWithGitLsFiles(); err == nil && len(files) > 0 {
		return files, nil
	}
	return discoverWithWalk(".")
}

func discoverWithGitLsFiles() ([]string, error) {
	if _, err := exec.LookPath("git"); err != nil {
		return nil, err
	}
	// --others --exclude-standard includes untracked files that are not ignored
	cmd := exec.Command("git", "ls-files", "--cached", "--others", "--exclude-standard")
	output, err := cmd.Output()
	if err != nil {
		return nil, err
	}
	return filterSchemaFiles(output)
}

// skipDirs are never walked.
var skipDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
	"vendor":       true,
	"testdata":     true,
}

func discoverWithWalk(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if path != root && skipDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Name() == schemaFilename {
			files = append(files, absolute(path))
		}
		return nil
	})
	slices.Sort(files)
	return files, err
}

// filterSchemaFiles picks schema files out of git ls-files output.
func filterSchemaFiles(output []byte) ([]string, error) {
	var files []string
	scanner := bufio.NewScanner(bytes.NewReader(output))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if filepath.Base(line) == schemaFilename {
			files = append(files, absolute(line))
		}
	}
	slices.Sort(files)
	return files, scanner.Err()
}

func absolute(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	return abs
}
