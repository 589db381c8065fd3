package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var weatherCmd = &cobra.Command{
	Use:   "weather",
	Short: "Show current weather and forecast for a location",
	Long: `Show current weather and the short-range forecast.

Examples:
  agri weather --lat 18.52 --lon 73.85`,
	RunE: runWeather,
}

var weatherLat, weatherLon float64

func init() {
	weatherCmd.Flags().Float64Var(&weatherLat, "lat", 0, "Latitude")
	weatherCmd.Flags().Float64Var(&weatherLon, "lon", 0, "Longitude")
	_ = weatherCmd.MarkFlagRequired("lat")
	_ = weatherCmd.MarkFlagRequired("lon")
}

func runWeather(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	report, err := a.API.Weather(cmd.Context(), weatherLat, weatherLon)
	if err != nil {
		return userError(err)
	}

	cur := report.Current
	fmt.Printf("\n📍 %s\n", cur.Location)
	fmt.Println(strings.Repeat("─", 50))
	fmt.Printf("  %s\n", cur.Description)
	fmt.Printf("  🌡  %s   💧 %s   🌧  %s   💨 %s\n", cur.Temperature, cur.Humidity, cur.Rainfall, cur.WindSpeed)

	if len(report.Forecast) > 0 {
		fmt.Println("\n  Forecast")
		for _, f := range report.Forecast {
			fmt.Printf("  %-20s %5.1f°C  %3.0f%%  %s\n", f.Datetime, f.Temp, f.Humidity, f.Description)
		}
	}
	fmt.Println()
	return nil
}
