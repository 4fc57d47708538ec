package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/drivewise/drivewise/internal/apperr"
	"github.com/drivewise/drivewise/internal/integrations/classifier"
)

// Categorical enumerations the classifier was trained on. Each list is kept
// sorted because the training label encoder assigns codes in sorted order;
// the encoded value of a category is its index in the list.
var (
	engineTypes        = []string{"Diesel", "Hybrid", "Petrol"}
	assemblies         = []string{"Imported", "Local"}
	bodyTypes          = []string{"Cross Over", "Hatchback", "Mini Van", "SUV", "Sedan", "Van"}
	transmissionTypes  = []string{"Automatic", "Manual"}
	registrationStates = []string{"Registered", "Un-Registered"}
)

// RecommendationInput carries the raw feature values from the request
type RecommendationInput struct {
	Price              string
	ModelYear          string
	EngineType         string
	EngineCapacity     string
	Assembly           string
	BodyType           string
	TransmissionType   string
	RegistrationStatus string
}

// Recommender encodes recommendation features and queries the classifier
type Recommender struct {
	clf classifier.Predictor
	log *logrus.Logger
}

// NewRecommender initializes the recommendation adapter
func NewRecommender(clf classifier.Predictor, log *logrus.Logger) *Recommender {
	return &Recommender{clf: clf, log: log}
}

// Recommend validates and encodes the features and returns the predicted car name
func (r *Recommender) Recommend(ctx context.Context, input RecommendationInput) (string, error) {
	errors := map[string]string{}

	price := parseNumber(input.Price, "price", errors)
	modelYear := parseNumber(input.ModelYear, "modelYear", errors)
	engineCapacity := parseNumber(input.EngineCapacity, "engineCapacity", errors)
	engineType := encodeCategory(input.EngineType, engineTypes, "engineType", errors)
	assembly := encodeCategory(input.Assembly, assemblies, "assembly", errors)
	bodyType := encodeCategory(input.BodyType, bodyTypes, "bodyType", errors)
	transmission := encodeCategory(input.TransmissionType, transmissionTypes, "transmissionType", errors)
	registration := encodeCategory(input.RegistrationStatus, registrationStates, "registrationStatus", errors)

	if len(errors) > 0 {
		return "", apperr.Validation(errors)
	}

	// Feature order must match the columns the model was trained on
	features := []float64{price, modelYear, engineType, engineCapacity, assembly, bodyType, transmission, registration}

	label, err := r.clf.Predict(ctx, features)
	if err != nil {
		r.log.Errorf("Classifier prediction failed: %v", err)
		return "", apperr.Dependency("recommendation unavailable", err)
	}

	r.log.Infof("Recommended car: %s", label)
	return label, nil
}

func parseNumber(value, field string, errors map[string]string) float64 {
	if strings.TrimSpace(value) == "" {
		errors[field] = fmt.Sprintf("%s is required", field)
		return 0
	}
	n, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		errors[field] = fmt.Sprintf("%s must be a number", field)
		return 0
	}
	return n
}

func encodeCategory(value string, categories []string, field string, errors map[string]string) float64 {
	for i, c := range categories {
		if c == value {
			return float64(i)
		}
	}
	errors[field] = fmt.Sprintf("%s must be one of: %s", field, strings.Join(categories, ", "))
	return 0
}
