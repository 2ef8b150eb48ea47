package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/spigell/jobmatch/internal/matching"
	"github.com/spigell/jobmatch/internal/service"
)

var matchCmd = &cobra.Command{
	Use:   "match",
	Short: "Score every job against a candidate profile and print the best matches",
	Run: func(cmd *cobra.Command, _ []string) {
		runMatch(cmd, false)
	},
}

var companiesCmd = &cobra.Command{
	Use:   "companies",
	Short: "Score every job against a candidate profile and print the best companies",
	Run: func(cmd *cobra.Command, _ []string) {
		runMatch(cmd, true)
	},
}

func init() {
	for _, c := range []*cobra.Command{matchCmd, companiesCmd} {
		addProfileFlags(c)
		c.Flags().StringP("prefs", "p", "", "a YAML or JSON file with search preferences")
		rootCmd.AddCommand(c)
	}
	matchCmd.Flags().IntP("limit", "l", service.DefaultMatchLimit, "maximum number of matches to print")
}

func addProfileFlags(c *cobra.Command) {
	c.Flags().StringSliceP("skills", "s", nil, "candidate skills, comma separated (default from profile.skills)")
	c.Flags().StringP("objective", "o", "", "candidate objective (default from profile.objective)")
	c.Flags().String("user-id", "", "load the stored profile of this user")
}

// profileFromFlags overlays the command line profile on the configured one.
func profileFromFlags(cmd *cobra.Command, config *Config) matching.Profile {
	profile := config.Profile
	if skills, _ := cmd.Flags().GetStringSlice("skills"); len(skills) > 0 {
		profile.Skills = skills
	}
	if objective, _ := cmd.Flags().GetString("objective"); strings.TrimSpace(objective) != "" {
		profile.Objective = objective
	}
	if userID, _ := cmd.Flags().GetString("user-id"); strings.TrimSpace(userID) != "" {
		profile = matching.Profile{UserID: userID}
	}
	return profile
}

func loadPreferences(path string, fallback *matching.Preferences) (*matching.Preferences, error) {
	if strings.TrimSpace(path) == "" {
		return fallback, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read preferences %q: %w", path, err)
	}

	// JSON documents are valid YAML.
	var prefs matching.Preferences
	if err := yaml.Unmarshal(data, &prefs); err != nil {
		return nil, fmt.Errorf("decode preferences %q: %w", path, err)
	}
	return &prefs, nil
}

func runMatch(cmd *cobra.Command, byCompany bool) {
	ctx := context.Background()
	rt := setup(ctx, true)
	defer rt.close()
	logger := rt.logger

	prefsFile, _ := cmd.Flags().GetString("prefs")
	prefs, err := loadPreferences(prefsFile, rt.config.Preferences)
	if err != nil {
		logger.Fatal("loading preferences", zap.Error(err))
	}

	req := service.MatchRequest{Profile: profileFromFlags(cmd, rt.config), Preferences: prefs}
	logger.Info("matching jobs",
		zap.Strings("skills", req.Profile.Skills),
		zap.String("objective", req.Profile.Objective),
		zap.String("user_id", req.Profile.UserID),
	)

	var result any
	if byCompany {
		resp, err := rt.service.MatchByCompany(ctx, req)
		if err != nil {
			logger.Fatal("matching by company", zap.Error(err))
		}
		logger.Info("companies ranked", zap.Int("total_companies", resp.TotalCompanies), zap.Int("total_jobs", resp.TotalJobs))
		result = resp
	} else {
		resp, err := rt.service.Match(ctx, req)
		if err != nil {
			logger.Fatal("matching", zap.Error(err))
		}
		if limit, _ := cmd.Flags().GetInt("limit"); limit > 0 && len(resp.Results) > limit {
			resp.Results = resp.Results[:limit]
		}
		result = resp
	}

	if err := printJSON(result); err != nil {
		logger.Fatal("printing result", zap.Error(err))
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
