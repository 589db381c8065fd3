package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/existflow/agrisense/internal/advisor"
	"github.com/existflow/agrisense/internal/model"
	"github.com/spf13/cobra"
)

var cropCmd = &cobra.Command{
	Use:   "crop",
	Short: "Recommend a crop for your soil and location",
	Long: `Recommend a crop from soil nutrients, pH, rainfall and location.

Examples:
  agri crop -n 90 -p 42 -k 43 --ph 6.5 --rainfall 202.9 --state Maharashtra --city Pune`,
	RunE: runCrop,
}

var fertilizerCmd = &cobra.Command{
	Use:   "fertilizer",
	Short: "Recommend a fertilizer for a crop",
	Long: `Recommend a fertilizer from soil nutrients and the crop you grow.

Examples:
  agri fertilizer -n 10 -p 20 -k 30 --crop Wheat --soil Loamy`,
	RunE: runFertilizer,
}

var diseaseCmd = &cobra.Command{
	Use:   "disease <image>",
	Short: "Detect plant disease from a leaf photo",
	Args:  cobra.ExactArgs(1),
	RunE:  runDisease,
}

var (
	cropIn       advisor.CropInput
	fertilizerIn advisor.FertilizerInput
)

func init() {
	cropCmd.Flags().IntVarP(&cropIn.Nitrogen, "nitrogen", "n", 0, "Nitrogen (N) content")
	cropCmd.Flags().IntVarP(&cropIn.Phosphorus, "phosphorus", "p", 0, "Phosphorus (P) content")
	cropCmd.Flags().IntVarP(&cropIn.Potassium, "potassium", "k", 0, "Potassium (K) content")
	cropCmd.Flags().Float64Var(&cropIn.PH, "ph", 0, "Soil pH (0-14)")
	cropCmd.Flags().Float64Var(&cropIn.Rainfall, "rainfall", 0, "Rainfall in mm")
	cropCmd.Flags().StringVar(&cropIn.State, "state", "", "State")
	cropCmd.Flags().StringVar(&cropIn.City, "city", "", "City")

	fertilizerCmd.Flags().IntVarP(&fertilizerIn.Nitrogen, "nitrogen", "n", 0, "Nitrogen (N) content")
	fertilizerCmd.Flags().IntVarP(&fertilizerIn.Phosphorus, "phosphorus", "p", 0, "Phosphorus (P) content")
	fertilizerCmd.Flags().IntVarP(&fertilizerIn.Potassium, "potassium", "k", 0, "Potassium (K) content")
	fertilizerCmd.Flags().StringVar(&fertilizerIn.CropName, "crop", "", "Crop you are growing")
	fertilizerCmd.Flags().StringVar(&fertilizerIn.SoilType, "soil", "", "Soil type")
}

func runCrop(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()
	if err := requireSession(cmd, a); err != nil {
		return err
	}

	fmt.Println("🔄 Analyzing soil and weather...")
	res, err := a.Advisor.RecommendCrop(cmd.Context(), cropIn)
	if err != nil {
		return userError(err)
	}

	p := res.Prediction
	fmt.Printf("\n🌾 Recommended crop: %s\n", p.Primary())
	fmt.Println(strings.Repeat("─", 50))
	for i, r := range p.Recommendations {
		fmt.Printf("  %d. %-15s %5.1f%%\n", i+1, r.Crop, r.Confidence*100)
	}
	for _, alt := range p.Alternatives {
		fmt.Printf("  • %-15s %s\n", alt.Name, alt.Reason)
	}
	c := p.Conditions
	if c.Location != "" || c.Temperature != 0 {
		fmt.Printf("\n  📍 %s  🌡  %.1f°C  💧 %.0f%%  🧪 %s\n", c.Location, c.Temperature, c.Humidity, c.SoilHealth)
	}
	printRecorded(res.Recorded)
	return nil
}

func runFertilizer(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()
	if err := requireSession(cmd, a); err != nil {
		return err
	}

	fmt.Println("🔄 Analyzing nutrients...")
	res, err := a.Advisor.RecommendFertilizer(cmd.Context(), fertilizerIn)
	if err != nil {
		return userError(err)
	}

	fmt.Printf("\n🧪 %s\n", res.Activity.Title)
	fmt.Println(strings.Repeat("─", 50))
	fmt.Println(res.Text())
	printRecorded(res.Recorded)
	return nil
}

func runDisease(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()
	if err := requireSession(cmd, a); err != nil {
		return err
	}

	file, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("failed to open image: %w", err)
	}
	defer func() {
		_ = file.Close()
	}()

	fmt.Println("🔄 Uploading image...")
	res, err := a.Advisor.DetectDisease(cmd.Context(), advisor.DiseaseInput{Filename: args[0], Image: file})
	if err != nil {
		return userError(err)
	}

	p := res.Prediction
	fmt.Printf("\n🍃 %s\n", p.Prediction)
	if p.Confidence > 0 {
		fmt.Printf("   Confidence: %.1f%%\n", p.Confidence*100)
	}
	if info := p.DiseaseInfoText(); info != "" {
		fmt.Println(strings.Repeat("─", 50))
		fmt.Println(model.PlainText(info))
	}
	printRecorded(res.Recorded)
	return nil
}

func printRecorded(recorded bool) {
	fmt.Println()
	if recorded {
		fmt.Println("📝 Saved to your activity history.")
	} else {
		fmt.Println("⚠️  Result could not be saved to your activity history.")
	}
}
