package api

import (
	"time"

	"github.com/fairface-insight/fairaudit/internal/fairness"
)

// Threshold sources reported by a ThresholdDecision
const (
	ThresholdSourceStandard = "standard"
	ThresholdSourceAdaptive = "adaptive"
)

// BoundingBox is a detected face region in pixel coordinates
type BoundingBox struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// GroupReport is the audit outcome for one demographic proxy group
type GroupReport struct {
	Group string `json:"group"`

	IdentityCount       int            `json:"identityCount"`
	ImageCount          int            `json:"imageCount"`
	EmbeddedCount       int            `json:"embeddedCount"`
	DetectedCount       int            `json:"detectedCount"`
	DetectionRate       float64        `json:"detectionRate"`
	IlluminationBuckets map[string]int `json:"illuminationBuckets"`
	PreprocessingUsed   int            `json:"preprocessingUsed"`

	GenuinePairs     int                        `json:"genuinePairs"`
	ImpostorPairs    int                        `json:"impostorPairs"`
	CentroidDistance *float64                   `json:"centroidDistance"`
	Genuine          fairness.DistributionStats `json:"genuineDistribution"`
	Impostor         fairness.DistributionStats `json:"impostorDistribution"`
	Overlap          *float64                   `json:"overlap"`
	DPrime           *float64                   `json:"dPrime"`

	StandardThreshold float64                 `json:"standardThreshold"`
	AdaptiveThreshold float64                 `json:"adaptiveThreshold"`
	Baseline          fairness.Metrics        `json:"baseline"`
	Mitigated         fairness.Metrics        `json:"mitigated"`
	Lookalike         fairness.LookalikeRisk  `json:"lookalikeRisk"`
	Interpretation    fairness.Interpretation `json:"interpretation"`
	Warnings          []string                `json:"warnings"`
}

// SkippedGroup records a configured group that produced no report
type SkippedGroup struct {
	Group  string `json:"group"`
	Reason string `json:"reason"`
}

// ScorePair holds the baseline and mitigated aggregate scores
type ScorePair struct {
	Baseline  fairness.ScoreSummary `json:"baseline"`
	Mitigated fairness.ScoreSummary `json:"mitigated"`
}

// AuditResult is the outcome of one audit run. Groups keep the configured
// group order.
type AuditResult struct {
	AuditID            string             `json:"auditId"`
	Groups             []GroupReport      `json:"groups"`
	Skipped            []SkippedGroup     `json:"skippedGroups"`
	Score              ScorePair          `json:"overallFairnessScore"`
	Threshold          float64            `json:"threshold"`
	TargetFPR          float64            `json:"targetFpr"`
	MaxPairs           int                `json:"maxPairs"`
	UsePreprocessing   bool               `json:"usePreprocessing"`
	Seed               int64              `json:"seed"`
	AdaptiveThresholds map[string]float64 `json:"adaptiveThresholds"`
	Timestamp          time.Time          `json:"timestamp"`
}

// ThresholdDecision is the answer to a single-pair threshold comparison
type ThresholdDecision struct {
	WithinThreshold bool    `json:"withinThreshold"`
	ThresholdUsed   float64 `json:"thresholdUsed"`
	Source          string  `json:"source"`
}

// HealthResponse is returned by GET /api/health
type HealthResponse struct {
	Status    string   `json:"status"`
	Model     string   `json:"model"`
	Groups    []string `json:"groups"`
	Timestamp string   `json:"timestamp"`
}

// ErrorResponse is the body of every non-2xx response
type ErrorResponse struct {
	Error string `json:"error"`
}

// AnalyzeFaceResponse is returned by POST /api/analyze-face
type AnalyzeFaceResponse struct {
	FaceDetected   bool         `json:"faceDetected"`
	EmbeddingSize  int          `json:"embeddingSize"`
	ModelUsed      string       `json:"modelUsed"`
	ProcessingTime float64      `json:"processingTime"`
	BoundingBox    *BoundingBox `json:"boundingBox,omitempty"`
	Confidence     *float64     `json:"confidence,omitempty"`
}

// CompareFacesResponse is returned by POST /api/compare-faces
type CompareFacesResponse struct {
	Face1Detected    bool               `json:"face1Detected"`
	Face2Detected    bool               `json:"face2Detected"`
	Distance         *float64           `json:"distance"`
	CosineSimilarity float64            `json:"cosineSimilarity"`
	IsMatch          bool               `json:"isMatch"`
	Confidence       float64            `json:"confidence"`
	Decision         *ThresholdDecision `json:"decision,omitempty"`
	ProcessingTime   float64            `json:"processingTime"`
}

// GroupAffinity is the distance of an uploaded face to one group centroid
type GroupAffinity struct {
	Group            string  `json:"group"`
	AverageDistance  float64 `json:"averageDistance"`
	SampleCount      int     `json:"sampleCount"`
	IsAboveThreshold bool    `json:"isAboveThreshold"`
}

// Mitigation describes the threshold applied to the best affinity match
type Mitigation struct {
	AppliedThreshold    float64 `json:"appliedThreshold"`
	StandardThreshold   float64 `json:"standardThreshold"`
	BiasReductionActive bool    `json:"biasReductionActive"`
	Status              string  `json:"status"`
}

// AffinityResponse is returned by POST /api/predict-demographic
type AffinityResponse struct {
	PredictedGroup  string          `json:"predictedGroup"`
	ConfidenceScore float64         `json:"confidenceScore"`
	Distances       []GroupAffinity `json:"distances"`
	Disclaimer      string          `json:"disclaimer"`
	Mitigation      Mitigation      `json:"mitigation"`
	ProcessingTime  float64         `json:"processingTime"`
}

// AuditRequest is the JSON body of POST /api/fairness-audit. Absent fields
// take the configured defaults.
type AuditRequest struct {
	Threshold        *float64 `json:"threshold"`
	UsePreprocessing *bool    `json:"usePreprocessing"`
	MaxPairs         *int     `json:"maxPairs"`
	Seed             *int64   `json:"seed"`
}

// EvaluationPlan lists what an audit measures
type EvaluationPlan struct {
	Metrics   []string `json:"metrics"`
	Baselines []string `json:"baselines"`
	Dataset   string   `json:"dataset"`
}

// AuditResponse is returned by POST /api/fairness-audit
type AuditResponse struct {
	*AuditResult
	EvaluationPlan EvaluationPlan `json:"evaluationPlan"`
	ProcessingTime float64        `json:"processingTime"`
}

// ThresholdsResponse is returned by GET /api/thresholds
type ThresholdsResponse struct {
	StandardThreshold  float64            `json:"standardThreshold"`
	AdaptiveThresholds map[string]float64 `json:"adaptiveThresholds"`
	Calibrated         bool               `json:"calibrated"`
}
