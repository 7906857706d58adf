// Package stats holds the pure numeric routines used to enrich player records:
// z-scores, percentiles, correlation, t-tests, confidence intervals,
// consistency and outlier extraction. Nothing here keeps state or does I/O.
package stats

import (
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// Method selects an outlier detection rule.
type Method string

const (
	// IQR flags values outside [Q1-1.5*IQR, Q3+1.5*IQR].
	IQR Method = "iqr"
	// ZScore flags values more than ZThreshold standard deviations from the mean.
	ZScore Method = "zscore"
)

// Deviation selects the standard deviation estimator used by the z-score rule.
type Deviation int

const (
	// Population divides by n.
	Population Deviation = iota
	// Sample divides by n-1.
	Sample
)

const (
	// IQRFactor widens the interquartile fences.
	IQRFactor = 1.5
	// ZThreshold is the |z| above which a value is an outlier.
	ZThreshold = 3.0
	// SignificanceLevel is the p-value below which a t-test is significant.
	SignificanceLevel = 0.05
)

// ParseMethod converts a method name into a Method.
func ParseMethod(name string) (Method, error) {
	switch m := Method(name); m {
	case IQR, ZScore:
		return m, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedMethod, name)
	}
}

// ZScoreOf returns how many population standard deviations value lies from
// the mean of ref. A constant reference yields 0.
func ZScoreOf(value float64, ref []float64) (float64, error) {
	if len(ref) == 0 {
		return 0, ErrInsufficientData
	}
	mean, std := stat.PopMeanStdDev(ref, nil)
	if std == 0 {
		return 0, nil
	}
	return (value - mean) / std, nil
}

// ZScores standardizes every element of data against data itself.
func ZScores(data []float64) ([]float64, error) {
	if len(data) == 0 {
		return nil, ErrInsufficientData
	}
	mean, std := stat.PopMeanStdDev(data, nil)
	out := make([]float64, len(data))
	if std == 0 {
		return out, nil
	}
	for i, v := range data {
		out[i] = (v - mean) / std
	}
	return out, nil
}

// Percentiles holds the quartiles and the 90th percentile of a sequence.
type Percentiles struct {
	P25 float64 `json:"25"`
	P50 float64 `json:"50"`
	P75 float64 `json:"75"`
	P90 float64 `json:"90"`
}

// PercentilesOf computes the 25/50/75/90th percentiles with linear
// interpolation between closest ranks.
func PercentilesOf(data []float64) (Percentiles, error) {
	if len(data) == 0 {
		return Percentiles{}, ErrInsufficientData
	}
	s := sorted(data)
	return Percentiles{
		P25: Quantile(s, 0.25),
		P50: Quantile(s, 0.50),
		P75: Quantile(s, 0.75),
		P90: Quantile(s, 0.90),
	}, nil
}

// Quantile returns the p-quantile of an ascending, non-empty slice using
// linear interpolation at position (n-1)*p.
func Quantile(sortedData []float64, p float64) float64 {
	n := len(sortedData)
	if n == 1 {
		return sortedData[0]
	}
	h := float64(n-1) * p
	lo := int(math.Floor(h))
	if lo >= n-1 {
		return sortedData[n-1]
	}
	return sortedData[lo] + (h-float64(lo))*(sortedData[lo+1]-sortedData[lo])
}

// Correlation carries Pearson and Spearman coefficients with two-sided p-values.
type Correlation struct {
	Pearson   float64 `json:"pearson_correlation"`
	PearsonP  float64 `json:"pearson_p_value"`
	Spearman  float64 `json:"spearman_correlation"`
	SpearmanP float64 `json:"spearman_p_value"`
}

// Correlate computes Pearson and Spearman correlation between x and y.
func Correlate(x, y []float64) (Correlation, error) {
	if len(x) != len(y) {
		return Correlation{}, ErrLengthMismatch
	}
	if len(x) < 3 {
		return Correlation{}, ErrInsufficientData
	}
	r := stat.Correlation(x, y, nil)
	if math.IsNaN(r) {
		return Correlation{}, ErrZeroVariance
	}
	rho := stat.Correlation(rank(x), rank(y), nil)
	if math.IsNaN(rho) {
		return Correlation{}, ErrZeroVariance
	}
	n := len(x)
	return Correlation{
		Pearson:   r,
		PearsonP:  correlationP(r, n),
		Spearman:  rho,
		SpearmanP: correlationP(rho, n),
	}, nil
}

// correlationP is the two-sided p-value of r under the t approximation with n-2 df.
func correlationP(r float64, n int) float64 {
	if math.Abs(r) >= 1 {
		return 0
	}
	df := float64(n - 2)
	t := r * math.Sqrt(df/(1-r*r))
	return 2 * distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}.Survival(math.Abs(t))
}

// rank assigns 1-based ranks, averaging ties.
func rank(data []float64) []float64 {
	idx := make([]int, len(data))
	for i := range idx {
		idx[i] = i
	}
	slices.SortStableFunc(idx, func(a, b int) int {
		switch {
		case data[a] < data[b]:
			return -1
		case data[a] > data[b]:
			return 1
		}
		return 0
	})
	ranks := make([]float64, len(data))
	for i := 0; i < len(idx); {
		j := i
		for j+1 < len(idx) && data[idx[j+1]] == data[idx[i]] {
			j++
		}
		avg := float64(i+j)/2 + 1
		for k := i; k <= j; k++ {
			ranks[idx[k]] = avg
		}
		i = j + 1
	}
	return ranks
}

// TTestResult is the outcome of an independent two-sample t-test.
type TTestResult struct {
	T           float64 `json:"t_statistic"`
	P           float64 `json:"p_value"`
	DF          float64 `json:"degrees_of_freedom"`
	Significant bool    `json:"significant"`
}

// TTest runs an independent two-sample t-test assuming equal variances.
func TTest(a, b []float64) (TTestResult, error) {
	na, nb := float64(len(a)), float64(len(b))
	if len(a) < 2 || len(b) < 2 {
		return TTestResult{}, ErrInsufficientData
	}
	meanA, varA := stat.MeanVariance(a, nil)
	meanB, varB := stat.MeanVariance(b, nil)
	df := na + nb - 2
	pooled := ((na-1)*varA + (nb-1)*varB) / df
	se := math.Sqrt(pooled * (1/na + 1/nb))
	if se == 0 {
		return TTestResult{}, ErrZeroVariance
	}
	t := (meanA - meanB) / se
	p := 2 * distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}.Survival(math.Abs(t))
	return TTestResult{T: t, P: p, DF: df, Significant: p < SignificanceLevel}, nil
}

// Interval is a confidence interval around a sample mean.
type Interval struct {
	Mean  float64 `json:"mean"`
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
	Level float64 `json:"confidence"`
}

// ConfidenceInterval returns the t-distribution interval for the mean of data.
func ConfidenceInterval(data []float64, level float64) (Interval, error) {
	if level <= 0 || level >= 1 {
		return Interval{}, ErrInvalidLevel
	}
	n := len(data)
	if n < 2 {
		return Interval{}, ErrInsufficientData
	}
	mean, std := stat.MeanStdDev(data, nil)
	sem := stat.StdErr(std, float64(n))
	q := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: float64(n - 1)}.Quantile((1 + level) / 2)
	return Interval{Mean: mean, Lower: mean - sem*q, Upper: mean + sem*q, Level: level}, nil
}

// Consistency summarizes spread relative to the mean.
type Consistency struct {
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std"`
	CV     float64 `json:"cv"`
}

// ConsistencyOf returns mean, population std and the coefficient of
// variation in percent (0 when the mean is 0).
func ConsistencyOf(data []float64) (Consistency, error) {
	if len(data) == 0 {
		return Consistency{}, ErrInsufficientData
	}
	mean, std := stat.PopMeanStdDev(data, nil)
	c := Consistency{Mean: mean, StdDev: std}
	if mean != 0 {
		c.CV = std / mean * 100
	}
	return c, nil
}

// OutlierMask reports, per element, whether it is an outlier under method.
// dev only affects the z-score rule.
func OutlierMask(data []float64, method Method, dev Deviation) ([]bool, error) {
	mask := make([]bool, len(data))
	switch method {
	case IQR:
		if len(data) == 0 {
			return mask, nil
		}
		lo, hi := IQRBounds(data)
		for i, v := range data {
			mask[i] = v < lo || v > hi
		}
	case ZScore:
		if len(data) < 2 {
			return mask, nil
		}
		mean, std := stat.PopMeanStdDev(data, nil)
		if dev == Sample {
			mean, std = stat.MeanStdDev(data, nil)
		}
		if std == 0 {
			return mask, nil
		}
		for i, v := range data {
			mask[i] = math.Abs(v-mean)/std > ZThreshold
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedMethod, method)
	}
	return mask, nil
}

// Outliers returns the values of data flagged by method, in input order. The
// z-score rule uses the population standard deviation.
func Outliers(data []float64, method Method) ([]float64, error) {
	mask, err := OutlierMask(data, method, Population)
	if err != nil {
		return nil, err
	}
	out := []float64{}
	for i, flagged := range mask {
		if flagged {
			out = append(out, data[i])
		}
	}
	return out, nil
}

// IQRBounds returns the Tukey fences of a non-empty sequence.
func IQRBounds(data []float64) (lo, hi float64) {
	s := sorted(data)
	q1, q3 := Quantile(s, 0.25), Quantile(s, 0.75)
	iqr := q3 - q1
	return q1 - IQRFactor*iqr, q3 + IQRFactor*iqr
}

func sorted(data []float64) []float64 {
	s := slices.Clone(data)
	slices.Sort(s)
	return s
}
