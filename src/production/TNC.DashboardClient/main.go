package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"gitlab.com/maplesense1/tnc.tinaco_server/src/production/TNC.DashboardClient/client"
	config "gitlab.com/maplesense1/tnc.tinaco_server/src/production/TNC.Config"
	logger "gitlab.com/maplesense1/tnc.tinaco_server/src/production/TNC.Logger"
	tncmodels "gitlab.com/maplesense1/tnc.tinaco_server/src/production/TNC.Models"
)

func main() {
	page := flag.Int("page", 1, "page to display")
	xlsxPath := flag.String("xlsx", "", "also write every fetched reading to this .xlsx file")
	daily := flag.String("daily", "", "show the daily rollup of this device instead of the reading list")
	flag.Parse()

	cfg, err := config.LoadDashboardConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewLogger(&cfg.Logging).WithService("dashboard")
	api := client.NewReadingsClient(cfg, log)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()

	if *daily != "" {
		printDaily(api.FetchDaily(ctx, *daily))
		return
	}

	readings := api.FetchAll(ctx)
	printPage(client.Paginate(readings, *page, cfg.PageSize))

	if *xlsxPath != "" {
		data, err := client.ExportReadings(readings)
		if err != nil {
			log.FatalWithError(err, "Failed to build workbook")
		}
		if err := os.WriteFile(*xlsxPath, data, 0o644); err != nil {
			log.FatalWithError(err, "Failed to write workbook")
		}
		log.WithFields(map[string]interface{}{
			"path": *xlsxPath,
			"rows": len(readings),
		}).Info("Workbook written")
	}
}

func printPage(p client.Page[tncmodels.Reading]) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tDEVICE\tLEVEL%\tFLOW\tTDS\tTEMP\tHUM%\tPUMP\tVALVE\tALERTS")
	for _, r := range p.Items {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.Ts.UTC().Format(time.DateTime),
			r.DeviceID,
			num(r.LevelPct), num(r.FlowLpm), num(r.TdsPpm), num(r.WaterTempC), num(r.HumidityPct),
			text(r.Pump), text(r.Valve),
			strings.Join(r.Alerts, ","),
		)
	}
	w.Flush()
	fmt.Printf("page %d/%d (%d readings)\n", p.Number, p.TotalPages, p.TotalItems)
}

func printDaily(days []tncmodels.DailyAggregate) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "DAY\tAVG LEVEL%\tAPPROX L\tAVG TDS\tAVG TEMP\tAVG HUM%\tSAMPLES")
	for _, d := range days {
		fmt.Fprintf(w, "%s\t%s\t%.1f\t%s\t%s\t%s\t%d\n",
			d.Day.UTC().Format(time.DateOnly),
			num(d.AvgLevel), d.ApproxLiters, num(d.AvgTds), num(d.AvgTempC), num(d.AvgHumidityPct),
			d.Samples,
		)
	}
	w.Flush()
}

func num(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.1f", *v)
}

func text(v *string) string {
	if v == nil {
		return "-"
	}
	return *v
}
