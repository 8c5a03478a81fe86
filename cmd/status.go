package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spf13/cobra"
)

var (
	serverURL string
)

var statusCmd = &cobra.Command{
	Use:   "status [fit-id]",
	Short: "Query server status or a specific fit",
	Long: `Queries the server for fit status information.
If no fit-id is provided, lists all fits.
If a fit-id is provided, shows detailed status for that fit.`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&serverURL, "server", "http://localhost:8080", "Server URL")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return listFits(fmt.Sprintf("%s/api/v1/fits", serverURL))
	}
	fitID := args[0]
	return getFitStatus(fmt.Sprintf("%s/api/v1/fits/%s/status", serverURL, fitID), fitID)
}

func listFits(url string) error {
	resp, err := http.Get(url)
	if err != nil {
		return fmt.Errorf("failed to connect to server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned error: %s", string(body))
	}

	var fits []map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&fits); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if len(fits) == 0 {
		fmt.Println("No fits found")
		return nil
	}

	fmt.Printf("Found %d fit(s):\n\n", len(fits))
	for _, job := range fits {
		fmt.Printf("Fit ID: %s\n", job["id"])
		fmt.Printf("  State: %s\n", job["state"])
		if config, ok := job["config"].(map[string]interface{}); ok {
			fmt.Printf("  Model: %v\n", config["model"])
			fmt.Printf("  Optimizer: %v\n", config["optimizer"])
		}
		if cost, ok := job["bestCost"].(float64); ok && cost > 0 {
			fmt.Printf("  Cost: %v -> %v\n", job["initialCost"], job["bestCost"])
		}
		fmt.Println()
	}

	return nil
}

func getFitStatus(url, fitID string) error {
	resp, err := http.Get(url)
	if err != nil {
		return fmt.Errorf("failed to connect to server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("fit not found: %s", fitID)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned error: %s", string(body))
	}

	var status map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	fmt.Printf("Fit: %s\n", status["id"])
	fmt.Printf("State: %s\n", status["state"])
	fmt.Println()

	if config, ok := status["config"].(map[string]interface{}); ok {
		fmt.Println("Configuration:")
		fmt.Printf("  Model: %v\n", config["model"])
		fmt.Printf("  Optimizer: %v\n", config["optimizer"])
		if config["dataPath"] != nil {
			fmt.Printf("  Data: %v\n", config["dataPath"])
		}
		fmt.Printf("  Iterations: %v\n", config["iters"])
		fmt.Println()
	}

	fmt.Println("Progress:")
	initialCost, _ := status["initialCost"].(float64)
	if initialCost > 0 {
		fmt.Printf("  Initial Cost: %.6g\n", initialCost)
	}
	if bestCost, ok := status["bestCost"].(float64); ok && bestCost > 0 {
		fmt.Printf("  Best Cost: %.6g\n", bestCost)
		if initialCost > 0 {
			improvement := initialCost - bestCost
			fmt.Printf("  Improvement: %.6g (%.1f%%)\n", improvement, improvement/initialCost*100)
		}
	}
	if r2, ok := status["rSquared"].(float64); ok && r2 != 0 {
		fmt.Printf("  R^2: %.4f\n", r2)
	}
	if rounds, ok := status["rounds"].(float64); ok && rounds > 0 {
		fmt.Printf("  Rounds: %.0f\n", rounds)
	}
	if elapsed, ok := status["elapsed"].(float64); ok {
		fmt.Printf("  Elapsed: %s\n", time.Duration(elapsed*float64(time.Second)).Round(time.Millisecond))
	}
	if names, ok := status["parameterNames"].([]interface{}); ok {
		if params, ok := status["bestParams"].([]interface{}); ok && len(params) == len(names) {
			fmt.Println("\nParameters:")
			for i, name := range names {
				fmt.Printf("  %v = %v\n", name, params[i])
			}
		}
	}
	if errMsg, ok := status["error"].(string); ok && errMsg != "" {
		fmt.Printf("\nError: %s\n", errMsg)
	}

	return nil
}
