package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

func newQueryCommand(ctx *commandContext) *cobra.Command {
	var sources int

	cmd := &cobra.Command{
		Use:   "query <question>",
		Short: "Ask the running query service a question",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			question := strings.TrimSpace(strings.Join(args, " "))
			payload := map[string]any{"question": question}
			if sources > 0 {
				payload["sources"] = sources
			}
			encoded, err := json.Marshal(payload)
			if err != nil {
				return fmt.Errorf("encode request: %w", err)
			}

			endpoint := "http://" + clientAddr(cfg.API.Bind) + "/query"
			timeout := time.Duration(cfg.API.RequestTimeout) * time.Second
			if timeout <= 0 {
				timeout = 120 * time.Second
			}
			client := &http.Client{Timeout: timeout}

			resp, err := client.Post(endpoint, "application/json", bytes.NewReader(encoded))
			if err != nil {
				return fmt.Errorf("reach query service at %s (is `foundry up` running?): %w", endpoint, err)
			}
			defer resp.Body.Close()

			body, err := io.ReadAll(resp.Body)
			if err != nil {
				return fmt.Errorf("read response: %w", err)
			}
			if resp.StatusCode != http.StatusOK {
				var apiErr struct {
					Error string `json:"error"`
				}
				if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
					return fmt.Errorf("query failed: %s", apiErr.Error)
				}
				return fmt.Errorf("query failed: http %d", resp.StatusCode)
			}

			var parsed struct {
				Answer  string `json:"answer"`
				Sources []struct {
					URL        string  `json:"url"`
					Title      string  `json:"title"`
					Similarity float64 `json:"similarity"`
				} `json:"sources"`
			}
			if err := json.Unmarshal(body, &parsed); err != nil {
				return fmt.Errorf("decode response: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, parsed.Answer)
			if len(parsed.Sources) > 0 {
				fmt.Fprintln(out)
				fmt.Fprintln(out, "Sources:")
				for i, source := range parsed.Sources {
					fmt.Fprintf(out, "  [%d] %s (%s, similarity %.3f)\n", i+1, source.Title, source.URL, source.Similarity)
				}
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&sources, "sources", "n", 0, "Number of knowledge records to retrieve (defaults from config)")
	return cmd
}

// clientAddr turns a listen address into a dialable one: a wildcard host
// binds every interface but cannot be connected to directly.
func clientAddr(bind string) string {
	host, port, err := net.SplitHostPort(bind)
	if err != nil {
		return bind
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return net.JoinHostPort(host, port)
}
