package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/valter-silva-au/blockplan/internal/core"
	"github.com/valter-silva-au/blockplan/internal/storage"
	"github.com/valter-silva-au/blockplan/pkg/models"
)

var zonesCmd = &cobra.Command{
	Use:   "zones",
	Short: "Manage zone templates",
}

var zonesExpand bool

var zonesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List zone templates, or their instances with --expand",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Calendar == nil {
			return fmt.Errorf("calendar not initialized")
		}
		if err := Calendar.Refresh(); err != nil {
			return err
		}
		out := cmd.OutOrStdout()

		if !zonesExpand {
			entries, err := Calendar.ListZones()
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Fprintln(out, "No zones defined.")
				return nil
			}
			fmt.Fprintf(out, "%-12s %-11s %-8s %-6s %-6s %-6s %s\n", "NAME", "TIME", "DAYS", "TYPE", "ENERGY", "MIN", "BUFFER")
			for _, z := range entries {
				days := z.Days
				if days == "" {
					days = "*"
				}
				fmt.Fprintf(out, "%-12s %-11s %-8s %-6s %-6s %-6d %d\n",
					z.Name, z.Start+"-"+z.End, days, z.ZoneType, z.EnergyLevel, z.MinDuration, z.BufferRequired)
			}
			return nil
		}

		templates, err := Calendar.GetZones()
		if err != nil {
			return err
		}
		instances, err := core.ExpandZones(templates, Clock.Now(), HorizonDays)
		if err != nil {
			return err
		}
		if len(instances) == 0 {
			fmt.Fprintln(out, "No zone instances in the horizon.")
			return nil
		}
		var lastDay string
		for _, z := range instances {
			day := z.Start.Format("Mon 2006-01-02")
			if day != lastDay {
				fmt.Fprintln(out, dayStyle.Render(day))
				lastDay = day
			}
			fmt.Fprintf(out, "  %s-%s  %-12s %s/%s\n",
				z.Start.Format(clockFormat), z.End.Format(clockFormat), z.Name, z.ZoneType, z.EnergyLevel)
		}
		return nil
	},
}

var zoneAddFlags storage.ZoneEntry
var zoneAddType, zoneAddEnergy string

var zonesAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a recurring zone template",
	Long: `Add a zone template. --days takes a cron day-of-week field such as
"1-5" or "MON,WED,FRI"; leave it empty for every day.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Calendar == nil {
			return fmt.Errorf("calendar not initialized")
		}
		entry := zoneAddFlags
		entry.ZoneType = models.ZoneType(zoneAddType)
		entry.EnergyLevel = models.EnergyLevel(zoneAddEnergy)

		tpl, err := entry.ToZone(Clock.Now().Location())
		if err != nil {
			return err
		}
		// ExpandZones parses the cron day field.
		if _, err := core.ExpandZones([]models.TimeBlockZone{tpl}, Clock.Now(), 1); err != nil {
			return err
		}
		if err := Calendar.AddZone(entry); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Added zone %s (%s-%s)\n", entry.Name, entry.Start, entry.End)
		return nil
	},
}

func init() {
	zonesListCmd.Flags().BoolVar(&zonesExpand, "expand", false, "Show zone instances over the planning horizon")

	f := zonesAddCmd.Flags()
	f.StringVar(&zoneAddFlags.Name, "name", "", "Zone name (required)")
	f.StringVar(&zoneAddFlags.Start, "start", "", "Start time of day, HH:MM (required)")
	f.StringVar(&zoneAddFlags.End, "end", "", "End time of day, HH:MM (required)")
	f.StringVar(&zoneAddFlags.From, "from", "", "First date, YYYY-MM-DD (default today)")
	f.StringVar(&zoneAddFlags.Days, "days", "", "Cron day-of-week field (default every day)")
	f.StringVar(&zoneAddType, "type", string(models.ZoneDeep), "Zone type: deep, light or admin")
	f.StringVar(&zoneAddEnergy, "energy", string(models.EnergyMedium), "Energy level: high, medium or low")
	f.IntVar(&zoneAddFlags.MinDuration, "min", 30, "Minimum task length in minutes")
	f.IntVar(&zoneAddFlags.BufferRequired, "buffer", 0, "Minutes of free time around tasks in this zone")
	_ = zonesAddCmd.MarkFlagRequired("name")
	_ = zonesAddCmd.MarkFlagRequired("start")
	_ = zonesAddCmd.MarkFlagRequired("end")

	zonesCmd.AddCommand(zonesListCmd)
	zonesCmd.AddCommand(zonesAddCmd)
	rootCmd.AddCommand(zonesCmd)
}
