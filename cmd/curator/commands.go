package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/bytesize-travel/service-curation/internal/application"
	"github.com/bytesize-travel/service-curation/internal/auth"
	"github.com/bytesize-travel/service-curation/internal/contracts"
	"github.com/bytesize-travel/service-curation/internal/domain/content"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func selectCommand() *cobra.Command {
	var (
		cadence string
		publish bool
		at      string
	)
	cmd := &cobra.Command{
		Use:   "select",
		Short: "Select a bundle (preview unless --publish)",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := bootstrap()
			if err != nil {
				return err
			}
			defer env.Close()

			req := application.SelectRequest{Cadence: cadence, Preview: !publish}
			if at != "" {
				t, err := time.Parse(time.RFC3339, at)
				if err != nil {
					return fmt.Errorf("--at: %w", err)
				}
				req.Now = &t
			}

			dto, err := env.services.Curation.SelectBundle(cmd.Context(), req)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), dto)
		},
	}
	cmd.Flags().StringVar(&cadence, "cadence", "weekly", "configured cadence name")
	cmd.Flags().BoolVar(&publish, "publish", false, "record usage and save the run")
	cmd.Flags().StringVar(&at, "at", "", "selection instant (RFC3339), defaults to now")
	return cmd
}

func recordUsageCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "record-usage ID...",
		Short: "Mark content items as used now",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]uuid.UUID, 0, len(args))
			for _, a := range args {
				id, err := uuid.Parse(a)
				if err != nil {
					return fmt.Errorf("invalid content id %q: %w", a, err)
				}
				ids = append(ids, id)
			}

			env, err := bootstrap()
			if err != nil {
				return err
			}
			defer env.Close()

			dto, err := env.services.Curation.RecordUsage(cmd.Context(), ids)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), dto)
		},
	}
}

func importCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "import FILE",
		Short: "Import enriched content records from a YAML or JSON fixture",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			recs, err := readFixture(args[0])
			if err != nil {
				return err
			}

			env, err := bootstrap()
			if err != nil {
				return err
			}
			defer env.Close()

			report, err := env.services.Content.IngestBatch(cmd.Context(), recs)
			if err != nil {
				return err
			}
			if err := writeJSON(cmd.OutOrStdout(), report); err != nil {
				return err
			}
			if len(report.Failed) > 0 {
				return fmt.Errorf("%d of %d records rejected", len(report.Failed), len(recs))
			}
			return nil
		},
	}
}

func statsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show stored and eligible items per category",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := bootstrap()
			if err != nil {
				return err
			}
			defer env.Close()

			stats, err := env.services.Curation.PoolStats(cmd.Context())
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), stats)
		},
	}
}

func tokenCommand() *cobra.Command {
	var (
		subject string
		role    string
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for the write API",
		RunE: func(cmd *cobra.Command, args []string) error {
			if role != auth.RoleEditor && role != auth.RoleAdmin {
				return fmt.Errorf("--role must be %q or %q", auth.RoleEditor, auth.RoleAdmin)
			}
			env, err := bootstrap()
			if err != nil {
				return err
			}
			defer env.Close()

			if env.cfg.Auth.JWTSecret == "" {
				return errors.New("auth.jwt_secret is not configured")
			}
			token, err := auth.NewJWTManager(env.cfg.Auth.JWTSecret, env.cfg.Auth.TokenTTL).GenerateToken(subject, role)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "curator-cli", "token subject")
	cmd.Flags().StringVar(&role, "role", auth.RoleEditor, "token role (editor or admin)")
	return cmd
}

// readFixture decodes a list of enriched records. JSON is valid YAML, so one
// decoder covers both.
func readFixture(path string) ([]contracts.EnrichedContent, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture: %w", err)
	}

	var recs []contracts.EnrichedContent
	if err := yaml.Unmarshal(raw, &recs); err != nil {
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	if len(recs) == 0 {
		return nil, fmt.Errorf("%w: %s holds no records", content.ErrInvalidContent, path)
	}
	return recs, nil
}
