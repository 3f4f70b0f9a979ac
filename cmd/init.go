package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gzn7264/ai-travel-planner/internal/kv"
	"github.com/gzn7264/ai-travel-planner/internal/output"
)

var initCmd = &cobra.Command{
	Use:     "init",
	Short:   "Initialize a local travel planner store",
	Long:    `Creates the local .tp directory and its database.`,
	GroupID: "system",
	RunE: func(cmd *cobra.Command, args []string) error {
		baseDir := getBaseDir()

		if kv.Exists(baseDir) {
			output.Warning(".tp/ already exists")
			return nil
		}

		storage, err := kv.Open(baseDir)
		if err != nil {
			output.Error("failed to initialize store: %v", err)
			return err
		}
		if err := storage.Close(); err != nil {
			return err
		}

		fmt.Println("INITIALIZED .tp/")

		gitignorePath := filepath.Join(baseDir, ".gitignore")
		if _, err := os.Stat(gitignorePath); err == nil {
			addToGitignore(gitignorePath)
		}
		return nil
	},
}

func addToGitignore(path string) {
	content, _ := os.ReadFile(path)
	contentStr := string(content)
	if strings.Contains(contentStr, ".tp/") {
		return
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return
	}
	defer f.Close()

	if len(contentStr) > 0 && !strings.HasSuffix(contentStr, "\n") {
		f.WriteString("\n")
	}
	f.WriteString(".tp/\n")
	fmt.Println("Added .tp/ to .gitignore")
}

func init() {
	rootCmd.AddCommand(initCmd)
}
