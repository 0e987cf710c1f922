package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/awaistahir/ecocharge/internal/config"
	"github.com/awaistahir/ecocharge/internal/engine"
	"github.com/awaistahir/ecocharge/internal/lifestyle"
	"github.com/awaistahir/ecocharge/internal/log"
	"github.com/awaistahir/ecocharge/internal/planner"
	"github.com/awaistahir/ecocharge/internal/store"
	"github.com/awaistahir/ecocharge/internal/weather"
)

var (
	cfgFile string
	dbPath  string
	debug   bool
	cfg     *config.Config
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "ecocharge",
		Short: "EcoCharge - charge your EV when the grid is greenest",
		Long: `EcoCharge reads the solar, wind and cloud forecast for your location and
recommends the contiguous block of hours with the cleanest energy that still
finishes charging before you leave.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load(cfgFile)
			if err != nil {
				return err
			}
			if dbPath != "" {
				cfg.DBPath = dbPath
			}
			// The CLI keeps stderr quiet unless asked
			if debug || cfg.Debug {
				return log.Init(true)
			}
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			log.Sync()
		},
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.ecocharge/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "database path (default is $HOME/.ecocharge/ecocharge.db)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	rootCmd.AddCommand(forecastCmd())
	rootCmd.AddCommand(planCmd())
	rootCmd.AddCommand(profileCmd())
	rootCmd.AddCommand(actionCmd())
	rootCmd.AddCommand(leaderboardCmd())
	rootCmd.AddCommand(historyCmd())
	rootCmd.AddCommand(simulateCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func openStore() (*store.Store, error) {
	st, err := store.NewStore(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return st, nil
}

func newPlanner() *planner.Planner {
	return planner.New(weather.NewSource(cfg.Forecast), cfg.Forecast.HorizonHours)
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// loadProfile returns the named profile, or the defaults at the configured
// location when username is empty
func loadProfile(ctx context.Context, username string) (*engine.Profile, error) {
	if username == "" {
		p := engine.DefaultProfile("")
		p.Latitude, p.Longitude = cfg.Defaults.Latitude, cfg.Defaults.Longitude
		return p, nil
	}

	st, err := openStore()
	if err != nil {
		return nil, err
	}
	defer st.Close()

	p, err := st.GetProfile(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("%w (create it with 'ecocharge profile set %s')", err, username)
	}
	return p, nil
}

func forecastCmd() *cobra.Command {
	var username string
	var lat, lon float64
	var hours int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "forecast",
		Short: "Show the hourly green score forecast",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			profile, err := loadProfile(ctx, username)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("lat") {
				profile.Latitude = lat
			}
			if cmd.Flags().Changed("lon") {
				profile.Longitude = lon
			}

			series, err := newPlanner().Forecast(ctx, profile.Latitude, profile.Longitude, hours)
			if err != nil {
				return err
			}

			if asJSON {
				return printJSON(series)
			}

			fmt.Printf("%-18s %10s %8s %8s %8s\n", "TIME (UTC)", "SOLAR", "WIND", "CLOUD", "SCORE")
			fmt.Println("-------------------------------------------------------------")
			for _, p := range series {
				fmt.Printf("%-18s %10.1f %8.1f %7.0f%% %8.3f\n",
					engine.FormatTime(p.Time), p.Solar, p.Wind, p.Cloud, p.GreenScore)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&username, "user", "u", "", "Use this profile's location")
	cmd.Flags().Float64Var(&lat, "lat", 0, "Latitude")
	cmd.Flags().Float64Var(&lon, "lon", 0, "Longitude")
	cmd.Flags().IntVar(&hours, "hours", 0, "Forecast horizon in hours (default from config)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")

	return cmd
}

func planCmd() *cobra.Command {
	var username, departure string
	var in time.Duration
	var lat, lon, capacity, current, target, charger float64
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Find the greenest charging window before departure",
		Example: `  ecocharge plan --user asha --in 10h
  ecocharge plan --departure 2024-12-01T18:00:00Z --capacity 75 --soc 20 --target 90 --charger 11`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			var leave time.Time
			switch {
			case departure != "":
				t, err := time.Parse(time.RFC3339, departure)
				if err != nil {
					return fmt.Errorf("invalid departure (use RFC 3339, e.g. 2024-12-01T18:00:00Z): %w", err)
				}
				leave = t
			case in > 0:
				leave = time.Now().Add(in)
			default:
				return fmt.Errorf("set --departure or --in")
			}

			profile, err := loadProfile(ctx, username)
			if err != nil {
				return err
			}

			req := planner.Request{
				Latitude:  profile.Latitude,
				Longitude: profile.Longitude,
				Departure: leave,
				Charge:    profile.ChargeRequirement(),
			}
			flags := cmd.Flags()
			if flags.Changed("lat") {
				req.Latitude = lat
			}
			if flags.Changed("lon") {
				req.Longitude = lon
			}
			if flags.Changed("capacity") {
				req.Charge.BatteryCapacityKWh = capacity
			}
			if flags.Changed("soc") {
				req.Charge.CurrentSoCPercent = current
			}
			if flags.Changed("target") {
				req.Charge.TargetSoCPercent = target
			}
			if flags.Changed("charger") {
				req.Charge.ChargerPowerKW = charger
			}

			plan, err := newPlanner().Plan(ctx, req)
			if err != nil {
				return err
			}

			if asJSON {
				return printJSON(plan)
			}

			fmt.Printf("Departure: %s\n", engine.FormatTime(plan.Departure))
			fmt.Printf("Energy needed: %.1f kWh (%d h at %.1f kW)\n",
				plan.EnergyNeededKWh, plan.HoursNeeded, req.Charge.ChargerPowerKW)
			if !plan.Found() {
				fmt.Printf("No charging window: %s\n", plan.NoWindowReason)
				return nil
			}
			fmt.Printf("Best window: %s\n", plan.Window.Describe())
			return nil
		},
	}

	cmd.Flags().StringVarP(&username, "user", "u", "", "Profile supplying vehicle and location defaults")
	cmd.Flags().StringVarP(&departure, "departure", "d", "", "Departure time (RFC 3339)")
	cmd.Flags().DurationVar(&in, "in", 0, "Departure as a duration from now, e.g. 10h")
	cmd.Flags().Float64Var(&lat, "lat", 0, "Latitude")
	cmd.Flags().Float64Var(&lon, "lon", 0, "Longitude")
	cmd.Flags().Float64Var(&capacity, "capacity", 0, "Battery capacity (kWh)")
	cmd.Flags().Float64Var(&current, "soc", 0, "Current state of charge (%)")
	cmd.Flags().Float64Var(&target, "target", 0, "Target state of charge (%)")
	cmd.Flags().Float64Var(&charger, "charger", 0, "Charger power (kW)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")

	return cmd
}

func simulateCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "simulate <scenario>",
		Short:   "Estimate the CO2 saving of a lifestyle change",
		Example: `  ecocharge simulate bike 6 km to work 5 days a week`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			impact := lifestyle.Simulate(strings.Join(args, " "))
			fmt.Println(impact.Summary)
			return nil
		},
	}
}
