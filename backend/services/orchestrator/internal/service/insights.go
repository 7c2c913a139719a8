package service

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"evorchestrator/backend/services/orchestrator/internal/models"
)

// DefaultUtilization is assumed when a station has no recent sample.
const DefaultUtilization = 0.3

// Availability labels derived from utilization.
const (
	StatusAvailable = "Available"
	StatusModerate  = "Moderate"
	StatusBusy      = "Busy"
)

const (
	peakRecommendation    = "Peak hours - Consider charging after 9 PM for 20% savings"
	offPeakRecommendation = "Perfect time! Off-peak rates - Save up to 30%"

	peakPriceFactor    = 1.2
	offPeakPriceFactor = 0.7
	peakHourThreshold  = 0.7
	earthRadiusKm      = 6371.0
)

// Power tiers used by the directory filter.
const (
	PowerSlow  = "slow"
	PowerFast  = "fast"
	PowerRapid = "rapid"
)

// AvailabilityStatus buckets a utilization fraction.
func AvailabilityStatus(utilization float64) string {
	switch {
	case utilization < 0.5:
		return StatusAvailable
	case utilization < 0.8:
		return StatusModerate
	default:
		return StatusBusy
	}
}

// EstimatedWait buckets a utilization fraction into a wait estimate.
func EstimatedWait(utilization float64) string {
	switch {
	case utilization < 0.3:
		return "No wait"
	case utilization < 0.6:
		return "5-10 mins"
	case utilization < 0.8:
		return "10-15 mins"
	default:
		return "15+ mins"
	}
}

// Recommendation returns the charging advice for a station at the given hour of day.
func Recommendation(hour int, efficiencyRating float64) string {
	switch {
	case isPeakHour(hour):
		return peakRecommendation
	case isOffPeakHour(hour):
		return offPeakRecommendation
	default:
		return fmt.Sprintf("Good efficiency (%d%%) - Expected fast charging", int(math.Round(efficiencyRating*100)))
	}
}

// PredictedDuration is the expected charging time in minutes, never less than an hour.
func PredictedDuration(currentBattery, targetBattery int) int {
	minutes := (targetBattery - currentBattery) * 2
	if minutes < 60 {
		return 60
	}
	return minutes
}

// DynamicPrice applies the time-of-day tariff to the station's base price.
func DynamicPrice(basePrice float64, hour int) float64 {
	factor := 1.0
	switch {
	case isPeakHour(hour):
		factor = peakPriceFactor
	case isOffPeakHour(hour):
		factor = offPeakPriceFactor
	}
	return math.Round(basePrice*factor*100) / 100
}

// PowerTier classifies a charger by its power in kW.
func PowerTier(kw int) string {
	switch {
	case kw <= 25:
		return PowerSlow
	case kw <= 75:
		return PowerFast
	default:
		return PowerRapid
	}
}

// DistanceKm is the haversine distance rounded to 0.1 km.
func DistanceKm(lat1, lng1, lat2, lng2 float64) float64 {
	toRad := func(deg float64) float64 { return deg * math.Pi / 180 }
	dLat := toRad(lat2 - lat1)
	dLng := toRad(lng2 - lng1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return math.Round(earthRadiusKm*c*10) / 10
}

func isPeakHour(hour int) bool {
	return hour >= 18 && hour <= 21
}

func isOffPeakHour(hour int) bool {
	return hour >= 22 || hour <= 6
}

// annotate builds the directory view of a station.
func annotate(station models.Station, utilization float64, hour int) models.StationView {
	return models.StationView{
		Station:            station,
		CurrentUtilization: int(math.Round(utilization * 100)),
		EstimatedWait:      EstimatedWait(utilization),
		AvailabilityStatus: AvailabilityStatus(utilization),
		AIRecommendation:   Recommendation(hour, station.EfficiencyRating),
	}
}

// buildInsights analyses hourly averages of a station as seen at hour of the current day.
func buildInsights(station *models.Station, averages []models.HourlyAverage, hour int) *models.StationInsights {
	byHour := make(map[int]float64, len(averages))
	var total float64
	for _, avg := range averages {
		byHour[avg.Hour] = avg.Utilization
		total += avg.Utilization
	}

	insights := &models.StationInsights{
		StationID:           station.ID,
		PeakHours:           make([]int, 0),
		TimeSlotsPrediction: make([]models.TimeSlotPrediction, 0, 6),
	}
	if len(averages) > 0 {
		insights.AverageUtilization = round2(total / float64(len(averages)))
	}

	for _, avg := range averages {
		if avg.Utilization >= peakHourThreshold {
			insights.PeakHours = append(insights.PeakHours, avg.Hour)
		}
	}
	sort.Ints(insights.PeakHours)

	predict := func(h int) float64 {
		if u, ok := byHour[h]; ok {
			return u
		}
		return DefaultUtilization
	}

	for h := hour; h < 24; h++ {
		u := predict(h)
		if insights.BestTimeToday == nil || u < insights.BestTimeToday.Utilization {
			insights.BestTimeToday = &models.BestTime{Hour: h, Utilization: round2(u)}
		}
	}
	if best := insights.BestTimeToday; best != nil {
		best.Message = fmt.Sprintf("Best time to charge today is %s (%s)", formatHour(best.Hour), strings.ToLower(AvailabilityStatus(best.Utilization)))
	}

	if len(insights.PeakHours) > 0 {
		insights.CostSavingsTip = fmt.Sprintf("Avoid %s when the station is busiest; charging after 10 PM saves up to 30%%", formatHour(insights.PeakHours[0]))
	} else {
		insights.CostSavingsTip = "Charge between 10 PM and 6 AM for off-peak rates"
	}

	for i := 1; i <= 6; i++ {
		h := (hour + i) % 24
		u := predict(h)
		insights.TimeSlotsPrediction = append(insights.TimeSlotsPrediction, models.TimeSlotPrediction{
			Hour:                 h,
			PredictedUtilization: round2(u),
			AvailabilityStatus:   AvailabilityStatus(u),
			EstimatedWait:        EstimatedWait(u),
			DynamicPrice:         DynamicPrice(station.PricePerKWh, h),
		})
	}
	return insights
}

func formatHour(hour int) string {
	switch {
	case hour == 0:
		return "12 AM"
	case hour < 12:
		return fmt.Sprintf("%d AM", hour)
	case hour == 12:
		return "12 PM"
	default:
		return fmt.Sprintf("%d PM", hour-12)
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
