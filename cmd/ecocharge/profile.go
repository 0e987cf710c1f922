package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/awaistahir/ecocharge/internal/engine"
	"github.com/awaistahir/ecocharge/internal/rewards"
	"github.com/awaistahir/ecocharge/internal/store"
)

func profileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Manage user profiles",
	}

	cmd.AddCommand(profileShowCmd())
	cmd.AddCommand(profileSetCmd())

	return cmd
}

func profileShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <username>",
		Short: "Show a profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			p, err := st.GetProfile(context.Background(), args[0])
			if err != nil {
				return err
			}
			return printJSON(p)
		},
	}
}

func profileSetCmd() *cobra.Command {
	var vehicle string
	var lat, lon, capacity, charger float64
	var current, target int

	cmd := &cobra.Command{
		Use:   "set <username>",
		Short: "Create a profile or update its settings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			st, err := openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			p, err := st.GetProfile(ctx, args[0])
			created := false
			if errors.Is(err, store.ErrNotFound) {
				p = engine.DefaultProfile(args[0])
				p.Latitude, p.Longitude = cfg.Defaults.Latitude, cfg.Defaults.Longitude
				created = true
			} else if err != nil {
				return err
			}

			flags := cmd.Flags()
			if flags.Changed("vehicle") {
				p.VehicleType = engine.VehicleType(vehicle)
			}
			if flags.Changed("lat") {
				p.Latitude = lat
			}
			if flags.Changed("lon") {
				p.Longitude = lon
			}
			if flags.Changed("capacity") {
				p.BatteryCapacityKWh = capacity
			}
			if flags.Changed("charger") {
				p.ChargerPowerKW = charger
			}
			if flags.Changed("soc") {
				p.CurrentSoC = current
			}
			if flags.Changed("target") {
				p.TargetSoC = target
			}

			if err := st.UpsertProfile(ctx, p); err != nil {
				return err
			}

			if created {
				fmt.Printf("✓ Created profile: %s\n", p.Username)
			} else {
				fmt.Printf("✓ Updated profile: %s\n", p.Username)
			}
			fmt.Printf("  Vehicle: %s\n", p.VehicleType)
			fmt.Printf("  Location: %.4f, %.4f\n", p.Latitude, p.Longitude)
			fmt.Printf("  Battery: %.1f kWh, charger %.1f kW, %d%% -> %d%%\n",
				p.BatteryCapacityKWh, p.ChargerPowerKW, p.CurrentSoC, p.TargetSoC)
			return nil
		},
	}

	cmd.Flags().StringVar(&vehicle, "vehicle", string(engine.VehicleEV), "Vehicle type (EV or Non-EV)")
	cmd.Flags().Float64Var(&lat, "lat", 0, "Latitude")
	cmd.Flags().Float64Var(&lon, "lon", 0, "Longitude")
	cmd.Flags().Float64Var(&capacity, "capacity", 60, "Battery capacity (kWh)")
	cmd.Flags().Float64Var(&charger, "charger", 7, "Charger power (kW)")
	cmd.Flags().IntVar(&current, "soc", 40, "Current state of charge (%)")
	cmd.Flags().IntVar(&target, "target", 80, "Target state of charge (%)")

	return cmd
}

func actionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "action",
		Short: "List and record eco actions",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List eco actions and their points",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Printf("%-20s %-40s %6s\n", "KEY", "ACTION", "POINTS")
			fmt.Println("--------------------------------------------------------------------")
			for _, a := range rewards.Catalogue() {
				fmt.Printf("%-20s %-40s %6d\n", a.Key, a.Label, a.Points)
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "record <username> <action-key>",
		Short: "Record an eco action and earn points",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			res, err := rewards.Award(context.Background(), st, args[0], args[1])
			if err != nil {
				return err
			}

			fmt.Printf("+%d Eco Points - %s\n", res.Action.Points, res.Action.Label)
			fmt.Printf("Total: %d\n", res.Total)
			if res.Milestone {
				fmt.Printf("🎉 %d-point milestone reached!\n", rewards.MilestonePoints)
			}
			return nil
		},
	})

	return cmd
}

func leaderboardCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "leaderboard",
		Short: "Show the top eco point earners",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			entries, err := st.Leaderboard(context.Background(), limit)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Println("No users yet")
				return nil
			}

			fmt.Printf("%-4s %-24s %-8s %8s\n", "#", "USERNAME", "VEHICLE", "POINTS")
			fmt.Println("-----------------------------------------------")
			for i, e := range entries {
				fmt.Printf("%-4d %-24s %-8s %8d\n", i+1, e.Username, e.VehicleType, e.Points)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 8, "Number of entries")

	return cmd
}

func historyCmd() *cobra.Command {
	var month string

	cmd := &cobra.Command{
		Use:   "history <username>",
		Short: "Show a user's recorded eco actions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var from, to time.Time
			if month != "" {
				m, err := time.Parse("2006-01", month)
				if err != nil {
					return fmt.Errorf("invalid month format (use YYYY-MM): %w", err)
				}
				from, to = m, m.AddDate(0, 1, 0)
			}

			st, err := openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			ctx := context.Background()
			p, err := st.GetProfile(ctx, args[0])
			if err != nil {
				return err
			}
			actions, err := st.ListActions(ctx, p.Username, from, to)
			if err != nil {
				return err
			}

			fmt.Printf("%s - %d points\n", p.Username, p.Points)
			if len(actions) == 0 {
				fmt.Println("No actions recorded")
				return nil
			}
			for _, a := range actions {
				fmt.Printf("  [%s] %-40s +%d\n", a.RecordedAt.Format("2006-01-02"), a.Label, a.Points)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&month, "month", "m", "", "Only show this month (YYYY-MM)")

	return cmd
}
