// Package main provides the entry point for the Course Factory HTTP API server.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "coursefactory",
	Short: "Course Factory HTTP API Server",
	Long:  "Course Factory turns a topic and audience into a complete ebook course: AI-generated outline, per-lesson prose with illustrations, and a styled, downloadable PDF, plus social-media campaign generation.",
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
