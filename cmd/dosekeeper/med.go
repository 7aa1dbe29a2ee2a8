package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"dosekeeper/internal/dose"
)

// med command
var medCmd = &cobra.Command{
	Use:   "med",
	Short: "Manage medications",
}

// addDraftFlags registers the medication form fields on cmd.
func addDraftFlags(f *pflag.FlagSet) {
	f.String("dose", "", "Amount per dose, e.g. 2 or 0.5")
	f.String("unit", "", "Dose unit, e.g. mg, ml, tablet")
	f.String("category", "pill", "Form of the medication (pill, syrup, ...)")
	f.String("frequency", "daily", "daily, every_x_hours or every_x_days")
	f.Int("interval", 0, "Hours or days between doses (not used for daily)")
	f.String("start", "", "First day, YYYY-MM-DD (default today)")
	f.String("at", "", "Reminder time (first dose of the day), HH:MM")
	f.Int("days", 0, "Course length in days; 0 means no end date")
	f.Int("stock", -1, "Track inventory starting at this many units")
	f.Int("reorder", 0, "Warn when stock falls to this level")
	f.Bool("adjustable", false, "Allow the dose time to be moved")
	f.Bool("paused", false, "Save without activating reminders")
}

// applyDraftFlags copies the flags that were set on the command line onto d.
func applyDraftFlags(f *pflag.FlagSet, d *dose.Draft) {
	if f.Changed("dose") {
		d.DoseAmount, _ = f.GetString("dose")
	}
	if f.Changed("unit") {
		d.Unit, _ = f.GetString("unit")
	}
	if f.Changed("category") {
		d.Category, _ = f.GetString("category")
	}
	if f.Changed("frequency") {
		d.Frequency, _ = f.GetString("frequency")
	}
	if f.Changed("interval") {
		n, _ := f.GetInt("interval")
		d.IntervalValue = strconv.Itoa(n)
	}
	if f.Changed("start") {
		d.StartDate, _ = f.GetString("start")
	}
	if f.Changed("at") {
		d.ReminderTime, _ = f.GetString("at")
	}
	if f.Changed("days") {
		n, _ := f.GetInt("days")
		d.IsPermanent = n == 0
		d.Duration = strconv.Itoa(n)
	}
	if f.Changed("stock") {
		n, _ := f.GetInt("stock")
		d.IsInventoryEnabled = n >= 0
		d.Stock = strconv.Itoa(n)
		if d.ReorderLevel == "" {
			d.ReorderLevel = "0"
		}
	}
	if f.Changed("reorder") {
		n, _ := f.GetInt("reorder")
		d.ReorderLevel = strconv.Itoa(n)
	}
	if f.Changed("adjustable") {
		d.IsAdjustable, _ = f.GetBool("adjustable")
	}
	if f.Changed("paused") {
		paused, _ := f.GetBool("paused")
		d.IsActive = !paused
	}
}

func printMedication(m *dose.Medication) {
	state := "active"
	if !m.IsActive {
		state = "paused"
	}
	fmt.Printf("%s  %s  (%s)\n", m.Name, m.Dosage(), state)
	fmt.Printf("  id:       %s\n", m.ID)
	fmt.Printf("  schedule: %s\n", dose.SummarizeMedication(m))
	if m.Inventory.Enabled {
		low := ""
		if m.Inventory.Low() {
			low = "  (reorder)"
		}
		fmt.Printf("  stock:    %d, reorder at %d%s\n", m.Inventory.Stock, m.Inventory.ReorderLevel, low)
	}
}

var medAddCmd = &cobra.Command{
	Use:   "add NAME",
	Short: "Add a medication",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("MedicationAdd")
		if err != nil {
			return err
		}
		defer a.Close()

		d := dose.Draft{
			Name:         args[0],
			Category:     "pill",
			Frequency:    "daily",
			StartDate:    dose.Today(a.Now(), a.Location()).String(),
			IsPermanent:  true,
			IsActive:     true,
			ReorderLevel: "0",
		}
		applyDraftFlags(cmd.Flags(), &d)

		res, err := a.AddMedication(cmd.Context(), profileName, d)
		if err != nil {
			a.Fail()
			return err
		}
		printMedication(res.Medication)
		printWarnings(res.Warnings)
		return nil
	},
}

var medEditCmd = &cobra.Command{
	Use:   "edit NAME|ID",
	Short: "Change a medication; only the given flags are updated",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("MedicationEdit")
		if err != nil {
			return err
		}
		defer a.Close()

		rename, _ := cmd.Flags().GetString("name")
		res, err := a.EditMedication(cmd.Context(), profileName, args[0], func(d *dose.Draft) {
			if rename != "" {
				d.Name = rename
			}
			applyDraftFlags(cmd.Flags(), d)
		})
		if err != nil {
			a.Fail()
			return err
		}
		if res == nil {
			fmt.Println("Medication was deleted; nothing saved.")
			return nil
		}
		printMedication(res.Medication)
		printWarnings(res.Warnings)
		return nil
	},
}

var medListCmd = &cobra.Command{
	Use:   "list",
	Short: "List medications",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("MedicationList")
		if err != nil {
			return err
		}
		defer a.Close()

		meds, err := a.Medications(cmd.Context(), profileName)
		if err != nil {
			return err
		}
		if len(meds) == 0 {
			fmt.Println("No medications.")
			return nil
		}
		for _, m := range meds {
			state := ""
			if !m.IsActive {
				state = "  (paused)"
			}
			fmt.Printf("%-24s %-12s %s%s\n", m.Name, m.Dosage(), dose.SummarizeMedication(m), state)
		}
		return nil
	},
}

var medShowCmd = &cobra.Command{
	Use:   "show NAME|ID",
	Short: "Show a medication",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("MedicationShow")
		if err != nil {
			return err
		}
		defer a.Close()

		m, err := a.ShowMedication(cmd.Context(), profileName, args[0])
		if err != nil {
			return err
		}
		printMedication(m)
		return nil
	},
}

var medRmCmd = &cobra.Command{
	Use:   "rm NAME|ID",
	Short: "Delete a medication; its dose history is kept",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("MedicationDelete")
		if err != nil {
			return err
		}
		defer a.Close()

		m, warnings, err := a.DeleteMedication(cmd.Context(), profileName, args[0])
		if err != nil {
			a.Fail()
			return err
		}
		fmt.Printf("Deleted %s\n", m.Name)
		printWarnings(warnings)
		return nil
	},
}

func setActiveCmd(use, short, operation string, active bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " NAME|ID",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(operation)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.SetActive(cmd.Context(), profileName, args[0], active)
			if err != nil {
				a.Fail()
				return err
			}
			if res == nil {
				fmt.Println("Medication was deleted.")
				return nil
			}
			printMedication(res.Medication)
			printWarnings(res.Warnings)
			return nil
		},
	}
}

var medRestockCmd = &cobra.Command{
	Use:   "restock NAME|ID AMOUNT",
	Short: "Add units to a medication's stock",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		amount, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("amount must be a whole number: %q", args[1])
		}

		a, err := newApp("MedicationRestock")
		if err != nil {
			return err
		}
		defer a.Close()

		m, err := a.Restock(cmd.Context(), profileName, args[0], amount)
		if err != nil {
			a.Fail()
			return err
		}
		if m == nil {
			fmt.Println("Medication was deleted.")
			return nil
		}
		fmt.Printf("%s: %d in stock\n", m.Name, m.Inventory.Stock)
		return nil
	},
}

func init() {
	addDraftFlags(medAddCmd.Flags())
	_ = medAddCmd.MarkFlagRequired("dose")
	_ = medAddCmd.MarkFlagRequired("at")

	addDraftFlags(medEditCmd.Flags())
	medEditCmd.Flags().String("name", "", "Rename the medication")

	medCmd.AddCommand(medAddCmd)
	medCmd.AddCommand(medEditCmd)
	medCmd.AddCommand(medListCmd)
	medCmd.AddCommand(medShowCmd)
	medCmd.AddCommand(medRmCmd)
	medCmd.AddCommand(setActiveCmd("pause", "Pause reminders for a medication", "MedicationPause", false))
	medCmd.AddCommand(setActiveCmd("resume", "Resume reminders for a medication", "MedicationResume", true))
	medCmd.AddCommand(medRestockCmd)
}
