package fingerprint

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesatkinson28/Initial-MOT-backend-sub000/internal/vehicle/identity"
	dErrors "github.com/jamesatkinson28/Initial-MOT-backend-sub000/pkg/domain-errors"
)

func baseIdentity() CoreIdentity {
	return CoreIdentity{
		Make:                   "VOLKSWAGEN",
		FirstRegistrationMonth: "2014-03",
		EngineCapacityCc:       1968,
		FuelType:               "DIESEL",
		BodyStyle:              "Hatchback",
	}
}

func TestBuild_Deterministic(t *testing.T) {
	a, err := Build(baseIdentity())
	require.NoError(t, err)
	b, err := Build(baseIdentity())
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Len(t, a.String(), 64)
}

func TestBuild_SensitiveToEveryField(t *testing.T) {
	base, err := Build(baseIdentity())
	require.NoError(t, err)

	variants := map[string]CoreIdentity{
		"make":       {Make: "AUDI", FirstRegistrationMonth: "2014-03", EngineCapacityCc: 1968, FuelType: "DIESEL", BodyStyle: "Hatchback"},
		"month":      {Make: "VOLKSWAGEN", FirstRegistrationMonth: "2014-04", EngineCapacityCc: 1968, FuelType: "DIESEL", BodyStyle: "Hatchback"},
		"capacity":   {Make: "VOLKSWAGEN", FirstRegistrationMonth: "2014-03", EngineCapacityCc: 1598, FuelType: "DIESEL", BodyStyle: "Hatchback"},
		"fuel type":  {Make: "VOLKSWAGEN", FirstRegistrationMonth: "2014-03", EngineCapacityCc: 1968, FuelType: "PETROL", BodyStyle: "Hatchback"},
		"body style": {Make: "VOLKSWAGEN", FirstRegistrationMonth: "2014-03", EngineCapacityCc: 1968, FuelType: "DIESEL", BodyStyle: "Estate"},
	}
	for name, ci := range variants {
		t.Run(name, func(t *testing.T) {
			got, err := Build(ci)
			require.NoError(t, err)
			assert.NotEqual(t, base, got)
		})
	}
}

func TestBuild_NormalizesCosmeticDifferences(t *testing.T) {
	upper := baseIdentity()
	lower := baseIdentity()
	lower.Make = "  volkswagen "
	lower.FuelType = "Diesel"

	a, err := Build(upper)
	require.NoError(t, err)
	b, err := Build(lower)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestBuild_RejectsMissingMake(t *testing.T) {
	ci := baseIdentity()
	ci.Make = "   "
	_, err := Build(ci)
	require.Error(t, err)
	assert.True(t, dErrors.Is(err, dErrors.CodeFingerprintFailed))
}

func TestFromDocument(t *testing.T) {
	t.Run("reduces a full document", func(t *testing.T) {
		ci, err := FromDocument(identity.Document{
			Make:                     "FORD",
			MonthOfFirstRegistration: "2019-09",
			EngineCapacity:           999,
			FuelType:                 "PETROL",
			BodyStyle:                "Hatchback",
		})
		require.NoError(t, err)
		assert.Equal(t, "FORD", ci.Make)
		assert.Equal(t, 999, ci.EngineCapacityCc)
	})

	t.Run("rejects a document without make", func(t *testing.T) {
		_, err := FromDocument(identity.Document{FuelType: "PETROL"})
		require.Error(t, err)
		assert.True(t, dErrors.Is(err, dErrors.CodeFingerprintFailed))
	})

	t.Run("tolerates missing secondary attributes", func(t *testing.T) {
		ci, err := FromDocument(identity.Document{Make: "FORD"})
		require.NoError(t, err)
		fp, err := Build(ci)
		require.NoError(t, err)
		assert.False(t, fp.IsNil())
	})
}
