package cmd

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"runtime"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/terradash/terradash/internal/config"
	"github.com/terradash/terradash/internal/observability"
)

var (
	doctorAccessKey string
	doctorSecretKey string
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run diagnostic checks",
	Long: `Run diagnostic checks on the system and suggest fixes for common issues.

Examples:
  terradash doctor                                   # Full environment check
  terradash doctor --access-key AKIA... --secret-key ...  # Also validate submitted credentials`,
	Run: runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
	doctorCmd.Flags().StringVar(&doctorAccessKey, "access-key", "", "Validate this access key instead of the ambient AWS credential chain")
	doctorCmd.Flags().StringVar(&doctorSecretKey, "secret-key", "", "Secret key paired with --access-key")
}

func runDoctor(cmd *cobra.Command, args []string) {
	observability.CLILogger.Info("=== terradash doctor ===")
	observability.CLILogger.Info("")
	observability.CLILogger.Info("Running diagnostic checks...")
	observability.CLILogger.Info("")

	allChecks := true
	checkNum := 1
	totalChecks := 5

	// Check 1: Go version
	goVersion := runtime.Version()
	observability.CLILogger.Info(fmt.Sprintf("[%d/%d] Checking Go version... ✅ %s", checkNum, totalChecks, goVersion),
		zap.String("go_version", goVersion))
	checkNum++

	// Check 2: Configuration
	cfg, err := config.Load(configFile)
	if err != nil {
		observability.CLILogger.Error(fmt.Sprintf("[%d/%d] Checking configuration... ❌ %v", checkNum, totalChecks, err),
			zap.Error(err))
		allChecks = false
	} else {
		observability.CLILogger.Info(fmt.Sprintf("[%d/%d] Checking configuration... ✅ data dir %s", checkNum, totalChecks, cfg.Paths.DataDir),
			zap.String("data_dir", cfg.Paths.DataDir))
	}
	checkNum++

	// Check 3: Data directory
	if cfg != nil {
		if err := os.MkdirAll(cfg.Paths.DataDir, 0755); err != nil {
			observability.CLILogger.Error(fmt.Sprintf("[%d/%d] Checking data directory... ❌ not writable", checkNum, totalChecks),
				zap.Error(err))
			allChecks = false
		} else {
			observability.CLILogger.Info(fmt.Sprintf("[%d/%d] Checking data directory... ✅ writable", checkNum, totalChecks))
		}
	} else {
		observability.CLILogger.Warn(fmt.Sprintf("[%d/%d] Checking data directory... ⚠️  skipped (no configuration)", checkNum, totalChecks))
	}
	checkNum++

	// Check 4: Terraform binary
	binary := "terraform"
	if cfg != nil {
		binary = cfg.Terraform.Binary
	}
	if path, err := exec.LookPath(binary); err != nil {
		observability.CLILogger.Error(fmt.Sprintf("[%d/%d] Checking terraform binary... ❌ %q not found in PATH", checkNum, totalChecks, binary),
			zap.Error(err))
		allChecks = false
	} else {
		observability.CLILogger.Info(fmt.Sprintf("[%d/%d] Checking terraform binary... ✅ %s", checkNum, totalChecks, path),
			zap.String("binary", path))
	}
	checkNum++

	// Check 5: AWS credentials
	if !runCredentialCheck(cmd.Context(), checkNum, totalChecks) {
		allChecks = false
	}

	observability.CLILogger.Info("")
	if allChecks {
		observability.CLILogger.Info("✅ All checks passed! Your terradash installation is healthy.")
	} else {
		observability.CLILogger.Warn("⚠️  Some checks failed. Review the output above for details.")
	}
	observability.CLILogger.Info("")
	observability.CLILogger.Info("=== End Diagnostics ===")
}

// runCredentialCheck validates either the explicitly supplied key pair or
// the ambient AWS credential chain.
func runCredentialCheck(ctx context.Context, checkNum, totalChecks int) bool {
	if doctorAccessKey != "" || doctorSecretKey != "" {
		provider := credentials.NewStaticCredentialsProvider(doctorAccessKey, doctorSecretKey, "")
		creds, err := provider.Retrieve(ctx)
		if err != nil || creds.AccessKeyID == "" || creds.SecretAccessKey == "" {
			observability.CLILogger.Error(fmt.Sprintf("[%d/%d] Checking AWS credentials... ❌ supplied key pair is incomplete", checkNum, totalChecks))
			printAWSCredentialsHelp()
			return false
		}
		observability.CLILogger.Info(fmt.Sprintf("[%d/%d] Checking AWS credentials... ✅ supplied key pair", checkNum, totalChecks),
			zap.String("access_key", maskAccessKey(creds.AccessKeyID)))
		return true
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		observability.CLILogger.Error(fmt.Sprintf("[%d/%d] Checking AWS credentials... ❌ Cannot load AWS config", checkNum, totalChecks),
			zap.Error(err))
		printAWSCredentialsHelp()
		return false
	}

	creds, err := cfg.Credentials.Retrieve(ctx)
	if err != nil {
		observability.CLILogger.Error(fmt.Sprintf("[%d/%d] Checking AWS credentials... ❌ Cannot retrieve credentials", checkNum, totalChecks),
			zap.Error(err))
		printAWSCredentialsHelp()
		return false
	}

	observability.CLILogger.Info(fmt.Sprintf("[%d/%d] Checking AWS credentials... ✅ Found credentials", checkNum, totalChecks),
		zap.String("access_key", maskAccessKey(creds.AccessKeyID)),
		zap.String("source", creds.Source))
	return true
}

// maskAccessKey masks all but the last 4 characters of an access key.
func maskAccessKey(key string) string {
	if len(key) <= 4 {
		return "****"
	}
	return "****" + key[len(key)-4:]
}

// printAWSCredentialsHelp prints help for configuring AWS credentials.
func printAWSCredentialsHelp() {
	observability.CLILogger.Info("")
	observability.CLILogger.Info("To configure AWS credentials:")
	observability.CLILogger.Info("  1. Set AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY environment variables, or")
	observability.CLILogger.Info("  2. Run 'aws configure' to set up a profile, or")
	observability.CLILogger.Info("  3. Use IAM role when running on AWS infrastructure")
	observability.CLILogger.Info("")
}
