package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/target/mmk-bol-sync/internal/data"
	"github.com/target/mmk-bol-sync/internal/data/cryptoutil"
	"github.com/target/mmk-bol-sync/internal/domain/model"
)

// Secrets are read from the environment so they never show up in shell history.
const (
	clientSecretEnv            = "BOL_CLIENT_SECRET"
	advertisingClientSecretEnv = "BOL_ADVERTISING_CLIENT_SECRET"
)

var upsertFlags struct {
	name                string
	clientID            string
	advertisingClientID string
	intervalMinutes     int
	inactive            bool
}

var tenantsCmd = &cobra.Command{
	Use:   "tenants",
	Short: "Inspect and maintain tenant credentials",
}

var tenantsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tenants with their sync state",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withCredentials(cmd, func(ctx context.Context, repo *data.CredentialRepo) error {
			creds, err := repo.ListAll(ctx)
			if err != nil {
				return fmt.Errorf("list tenants: %w", err)
			}
			return printTenants(cmd.OutOrStdout(), creds, outputJSON)
		})
	},
}

var tenantsUpsertCmd = &cobra.Command{
	Use:   "upsert TENANT_ID",
	Short: "Create or replace a tenant credential",
	Long: `Create or replace a tenant credential.

The retailer client secret is read from ` + clientSecretEnv + ` and the optional
advertising client secret from ` + advertisingClientSecretEnv + `.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cred, err := credentialFromFlags(args[0], os.Getenv)
		if err != nil {
			return err
		}
		return withCredentials(cmd, func(ctx context.Context, repo *data.CredentialRepo) error {
			out, err := repo.Upsert(ctx, cred)
			if err != nil {
				return fmt.Errorf("upsert tenant: %w", err)
			}
			return printTenants(cmd.OutOrStdout(), []*model.Credential{out}, outputJSON)
		})
	},
}

var tenantsResealCmd = &cobra.Command{
	Use:   "reseal",
	Short: "Rewrite every tenant so its secrets are sealed with the configured key",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withCredentials(cmd, func(ctx context.Context, repo *data.CredentialRepo) error {
			n, err := resealAll(ctx, repo)
			if err != nil {
				return err
			}
			return printResealSummary(cmd.OutOrStdout(), n)
		})
	},
}

// credentialStore is the part of the credential repository the tenant
// commands use.
type credentialStore interface {
	ListAll(ctx context.Context) ([]*model.Credential, error)
	Upsert(ctx context.Context, c *model.Credential) (*model.Credential, error)
}

func credentialFromFlags(tenantID string, getenv func(string) string) (*model.Credential, error) {
	secret := strings.TrimSpace(getenv(clientSecretEnv))
	if secret == "" {
		return nil, fmt.Errorf("%s is required", clientSecretEnv)
	}
	cred := &model.Credential{
		TenantID:            tenantID,
		Name:                upsertFlags.name,
		ClientID:            upsertFlags.clientID,
		ClientSecret:        secret,
		Active:              !upsertFlags.inactive,
		SyncIntervalMinutes: upsertFlags.intervalMinutes,
	}
	adsSecret := strings.TrimSpace(getenv(advertisingClientSecretEnv))
	switch {
	case upsertFlags.advertisingClientID != "" && adsSecret != "":
		adsID := upsertFlags.advertisingClientID
		cred.AdvertisingClientID = &adsID
		cred.AdvertisingClientSecret = &adsSecret
	case upsertFlags.advertisingClientID != "" || adsSecret != "":
		return nil, fmt.Errorf("--advertising-client-id and %s must be set together", advertisingClientSecretEnv)
	}
	return cred, nil
}

// resealAll rewrites every credential through the store so secrets written
// before a key was configured end up sealed. It keeps going past failures.
func resealAll(ctx context.Context, store credentialStore) (int, error) {
	creds, err := store.ListAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("list tenants: %w", err)
	}
	var (
		n    int
		errs []error
	)
	for _, c := range creds {
		if _, err := store.Upsert(ctx, c); err != nil {
			errs = append(errs, fmt.Errorf("reseal %s: %w", c.TenantID, err))
			continue
		}
		n++
	}
	return n, errors.Join(errs...)
}

// withCredentials connects to the database and hands fn a credential
// repository sealed with the configured key.
func withCredentials(cmd *cobra.Command, fn func(context.Context, *data.CredentialRepo) error) error {
	cmdCtx, cancel, err := newCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cancel()

	sealer, err := cryptoutil.NewSealer(cmdCtx.Config.SecretsEncryptionKey)
	if err != nil {
		return fmt.Errorf("secrets sealer: %w", err)
	}

	db, _, err := connectInfra(cmdCtx, false)
	if err != nil {
		return err
	}
	defer closeDB(cmdCtx, db)

	return fn(cmdCtx.Ctx, data.NewCredentialRepo(db).WithSealer(sealer))
}

func closeDB(cmdCtx *commandContext, db *sql.DB) {
	if closeErr := db.Close(); closeErr != nil {
		cmdCtx.Logger.Warn("db close failed", "error", closeErr)
	}
}

func printResealSummary(w io.Writer, n int) error {
	_, err := fmt.Fprintf(w, "resealed %d tenants\n", n)
	return err
}

func init() {
	f := tenantsUpsertCmd.Flags()
	f.StringVar(&upsertFlags.name, "name", "", "display name")
	f.StringVar(&upsertFlags.clientID, "client-id", "", "retailer API client ID")
	f.StringVar(&upsertFlags.advertisingClientID, "advertising-client-id", "", "advertising API client ID")
	f.IntVar(&upsertFlags.intervalMinutes, "interval", 0, "sync interval in minutes (0 uses the default)")
	f.BoolVar(&upsertFlags.inactive, "inactive", false, "store the tenant as inactive")
	_ = tenantsUpsertCmd.MarkFlagRequired("client-id")

	tenantsCmd.AddCommand(tenantsListCmd, tenantsUpsertCmd, tenantsResealCmd)
	rootCmd.AddCommand(tenantsCmd)
}
