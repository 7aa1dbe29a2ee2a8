package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"dosekeeper/internal/dose"
)

// today command
var todayCmd = &cobra.Command{
	Use:   "today",
	Short: "Show today's doses and their status",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("Today")
		if err != nil {
			return err
		}
		defer a.Close()

		doses, err := a.Today(cmd.Context(), profileName)
		if err != nil {
			return err
		}
		if len(doses) == 0 {
			fmt.Println("Nothing due today.")
			return nil
		}
		for _, d := range doses {
			fmt.Printf("%8s  %-24s %-12s %s\n",
				dose.FormatClock(d.Slot.Hour, d.Slot.Minute),
				d.Medication.Name,
				d.Medication.Dosage(),
				d.Status,
			)
		}
		return nil
	},
}

// take command
var takeCmd = &cobra.Command{
	Use:   "take NAME|ID",
	Short: "Record a dose as taken",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		at, _ := cmd.Flags().GetString("at")

		a, err := newApp("Take")
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.Take(cmd.Context(), profileName, args[0], at)
		if err != nil {
			a.Fail()
			return err
		}
		if res == nil {
			fmt.Println("Medication was deleted; nothing recorded.")
			return nil
		}
		fmt.Printf("Took %s (due %s, %s)\n",
			res.Log.MedicationName,
			res.Log.ScheduledAt.In(a.Location()).Format("15:04"),
			describeDelay(res.Log.DelayMinutes),
		)
		if res.Inventory.Enabled {
			fmt.Printf("%d left\n", res.Inventory.Stock)
		}
		printWarnings(res.Warnings)
		return nil
	},
}

// skip command
var skipCmd = &cobra.Command{
	Use:   "skip NAME|ID",
	Short: "Record a dose as skipped",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		at, _ := cmd.Flags().GetString("at")

		a, err := newApp("Skip")
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.Skip(cmd.Context(), profileName, args[0], at)
		if err != nil {
			a.Fail()
			return err
		}
		if res == nil {
			fmt.Println("Medication was deleted; nothing recorded.")
			return nil
		}
		fmt.Printf("Skipped %s (due %s)\n", res.Log.MedicationName, res.Log.ScheduledAt.In(a.Location()).Format("15:04"))
		printWarnings(res.Warnings)
		return nil
	},
}

func describeDelay(minutes int) string {
	switch {
	case minutes == 0:
		return "on time"
	case minutes > 0:
		return fmt.Sprintf("%d min late", minutes)
	default:
		return fmt.Sprintf("%d min early", -minutes)
	}
}

// history command
var historyCmd = &cobra.Command{
	Use:   "history NAME|ID",
	Short: "Show the dose log of a medication",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp("History")
		if err != nil {
			return err
		}
		defer a.Close()

		logs, err := a.History(cmd.Context(), profileName, args[0], limit)
		if err != nil {
			return err
		}
		if len(logs) == 0 {
			fmt.Println("No doses recorded.")
			return nil
		}
		loc := a.Location()
		for _, l := range logs {
			fmt.Printf("%s  %-8s  due %s  %s\n",
				l.TakenAt.In(loc).Format("2006-01-02 15:04"),
				l.Status,
				l.ScheduledAt.In(loc).Format("15:04"),
				describeDelay(l.DelayMinutes),
			)
		}
		return nil
	},
}

// adherence command
var adherenceCmd = &cobra.Command{
	Use:   "adherence",
	Short: "Summarize taken, skipped and on-time doses per medication",
	RunE: func(cmd *cobra.Command, args []string) error {
		from, _ := cmd.Flags().GetString("from")
		to, _ := cmd.Flags().GetString("to")

		a, err := newApp("Adherence")
		if err != nil {
			return err
		}
		defer a.Close()

		rows, start, end, err := a.Adherence(cmd.Context(), profileName, from, to)
		if err != nil {
			return err
		}
		fmt.Printf("Adherence %s to %s\n\n", start, end)
		if len(rows) == 0 {
			fmt.Println("No medications.")
			return nil
		}
		for _, r := range rows {
			fmt.Printf("%-24s taken %d/%d (%3.0f%%)  skipped %d  on time %d  avg delay %.0f min\n",
				r.Name, r.Taken, r.Expected, r.Rate()*100, r.Skipped, r.OnTime, r.AverageDelay)
		}
		return nil
	},
}

func init() {
	takeCmd.Flags().String("at", "", "Scheduled time of the dose, HH:MM (default: latest due slot)")
	skipCmd.Flags().String("at", "", "Scheduled time of the dose, HH:MM (default: latest due slot)")
	historyCmd.Flags().IntP("limit", "n", 50, "Maximum number of entries to show")
	adherenceCmd.Flags().String("from", "", "First day, YYYY-MM-DD (default: six days before --to)")
	adherenceCmd.Flags().String("to", "", "Last day, YYYY-MM-DD (default: today)")
}
