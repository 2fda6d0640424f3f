// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Command flowline is the CLI client for the flowlined daemon.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var serverURL string

func main() {
	root := &cobra.Command{
		Use:          "flowline",
		Short:        "Client for the flowline workflow engine",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&serverURL, "server",
		defaultServer(), "daemon base URL")

	root.AddCommand(
		newWorkflowCmd(),
		newRunCmd(),
		newExecutionsCmd(),
		newExecutionCmd(),
	)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func defaultServer() string {
	if addr := os.Getenv("FLOWLINE_SERVER"); addr != "" {
		return addr
	}
	return "http://localhost:8080"
}

func newWorkflowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workflow",
		Short: "Inspect workflows",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List workflows",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return getJSON("/api/workflows")
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "get <workflow-id>",
		Short: "Fetch a workflow with its steps and edges",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return getJSON("/api/workflows/" + args[0])
		},
	})
	return cmd
}

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run <workflow-id>",
		Short: "Start a manual run and wait for its terminal status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return postJSON(fmt.Sprintf("/api/workflows/%s/execute", args[0]), nil)
		},
	}
}

func newExecutionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "executions <workflow-id>",
		Short: "List a workflow's runs, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return getJSON(fmt.Sprintf("/api/workflows/%s/executions", args[0]))
		},
	}
}

func newExecutionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "execution <execution-id>",
		Short: "Show one run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return getJSON("/api/executions/" + args[0])
		},
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "steps <execution-id>",
		Short: "Show a run's step records in dispatch order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return getJSON(fmt.Sprintf("/api/executions/%s/steps", args[0]))
		},
	})
	return cmd
}
