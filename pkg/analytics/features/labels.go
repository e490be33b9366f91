package features

// Risk flag thresholds.
const (
	HighBMIThreshold       = 30.0
	SeniorAgeThreshold     = 65
	MultipleConditionFloor = 2
)

var (
	ageBins   = []float64{0, 18, 35, 50, 65, 100}
	ageLabels = []string{"Child", "Young Adult", "Adult", "Senior", "Elderly"}
	bmiBins   = []float64{0, 18.5, 25, 30, 100}
	bmiLabels = []string{"Underweight", "Normal", "Overweight", "Obese"}
)

// AgeGroup buckets age into right-closed bins. Values outside the bins return
// an empty label.
func AgeGroup(age int) string {
	return bucket(float64(age), ageBins, ageLabels)
}

func BMICategory(bmi float64) string {
	return bucket(bmi, bmiBins, bmiLabels)
}

func bucket(v float64, bins []float64, labels []string) string {
	for i := 1; i < len(bins); i++ {
		if v > bins[i-1] && v <= bins[i] {
			return labels[i-1]
		}
	}
	return ""
}

func flag(ok bool) int {
	if ok {
		return 1
	}
	return 0
}
