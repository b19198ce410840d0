package assessment

import (
	"encoding/base64"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRiskLevelOrdering(t *testing.T) {
	assert.Equal(t, -1, RiskNone.Compare(RiskLow))
	assert.Equal(t, -1, RiskLow.Compare(RiskModerate))
	assert.Equal(t, -1, RiskModerate.Compare(RiskHigh))
	assert.Equal(t, 0, RiskHigh.Compare(RiskHigh))
	assert.Equal(t, 1, RiskHigh.Compare(RiskNone))

	assert.False(t, RiskNone.WarrantsFollowUp())
	assert.True(t, RiskLow.WarrantsFollowUp())
	assert.True(t, RiskHigh.WarrantsFollowUp())
}

func TestParseRiskLevel(t *testing.T) {
	level, err := ParseRiskLevel("Moderate")
	require.NoError(t, err)
	assert.Equal(t, RiskModerate, level)

	_, err = ParseRiskLevel("moderate")
	assert.ErrorIs(t, err, ErrInvalidRiskLevel)

	_, err = ParseRiskLevel("Severe")
	assert.ErrorIs(t, err, ErrInvalidRiskLevel)
}

func TestCompatibilityFinalize_InvalidItemDropsRiskAndAnalysis(t *testing.T) {
	r := CompatibilityResult{IsValidItem: false, RiskLevel: RiskHigh, Analysis: "ignored", Disclaimer: "model text"}

	require.NoError(t, r.Finalize())

	assert.Empty(t, r.RiskLevel)
	assert.Empty(t, r.Analysis)
	assert.Equal(t, CompatibilityDisclaimer, r.Disclaimer)

	raw, err := json.Marshal(r)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "riskLevel")
	assert.NotContains(t, string(raw), "analysis")
}

func TestCompatibilityFinalize_ValidItemNeedsRiskAndAnalysis(t *testing.T) {
	missingRisk := CompatibilityResult{IsValidItem: true, Analysis: "Use with caution"}
	assert.ErrorIs(t, missingRisk.Finalize(), ErrMissingRiskLevel)

	badRisk := CompatibilityResult{IsValidItem: true, RiskLevel: "Extreme", Analysis: "x"}
	assert.ErrorIs(t, badRisk.Finalize(), ErrInvalidRiskLevel)

	blankAnalysis := CompatibilityResult{IsValidItem: true, RiskLevel: RiskLow, Analysis: "  "}
	assert.ErrorIs(t, blankAnalysis.Finalize(), ErrMissingAnalysis)

	ok := CompatibilityResult{IsValidItem: true, RiskLevel: RiskModerate, Analysis: " Use with Caution. NSAIDs can raise blood pressure. "}
	require.NoError(t, ok.Finalize())
	assert.Equal(t, "Use with Caution. NSAIDs can raise blood pressure.", ok.Analysis)
	assert.Equal(t, CompatibilityDisclaimer, ok.Disclaimer)
	assert.True(t, ok.OffersFollowUp())
}

func TestSuggestionsNormalize(t *testing.T) {
	r := SuggestionsResult{Suggestions: []string{"Metformin", " metformin ", "", "Methotrexate", "Metoprolol", "Methadone", "Metronidazole", "Methylphenidate"}}

	r.Normalize()

	assert.Equal(t, []string{"Metformin", "Methotrexate", "Metoprolol", "Methadone", "Metronidazole"}, r.Suggestions)
}

func TestAlternativesFinalize(t *testing.T) {
	empty := AlternativesResult{}
	assert.ErrorIs(t, empty.Finalize(), ErrNoAlternatives)

	incomplete := AlternativesResult{Alternatives: []Alternative{{Name: "Acetaminophen"}}}
	assert.ErrorIs(t, incomplete.Finalize(), ErrIncompleteAlternative)

	many := AlternativesResult{Alternatives: []Alternative{
		{Name: "A", Reason: "r"}, {Name: "B", Reason: "r"}, {Name: "C", Reason: "r"}, {Name: "D", Reason: "r"},
	}}
	require.NoError(t, many.Finalize())
	assert.Len(t, many.Alternatives, MaxAlternatives)
}

func TestAdviceFinalize(t *testing.T) {
	r := AdviceResult{Advice: "Monitor for rash or dizziness.", Disclaimer: "whatever"}
	require.NoError(t, r.Finalize())
	assert.Equal(t, AdviceDisclaimer, r.Disclaimer)

	blank := AdviceResult{}
	assert.ErrorIs(t, blank.Finalize(), ErrMissingAdvice)
}

func TestTipsFinalize(t *testing.T) {
	r := LifestyleTipsResult{Tips: []LifestyleTip{{Category: "Dietary Advice", Tip: "Read labels."}}}
	require.NoError(t, r.Finalize())
	assert.Equal(t, TipsDisclaimer, r.Disclaimer)

	none := LifestyleTipsResult{}
	assert.ErrorIs(t, none.Finalize(), ErrNoTips)

	partial := LifestyleTipsResult{Tips: []LifestyleTip{{Category: "", Tip: "x"}}}
	assert.ErrorIs(t, partial.Finalize(), ErrIncompleteTip)
}

func TestParsePhoto(t *testing.T) {
	payload := base64.StdEncoding.EncodeToString([]byte("fake-png-bytes"))

	photo, err := ParsePhoto("data:image/PNG;base64,"+payload, 0)
	require.NoError(t, err)
	assert.Equal(t, "image/png", photo.MIMEType)
	assert.Equal(t, []byte("fake-png-bytes"), photo.Data)
	assert.Equal(t, "data:image/png;base64,"+payload, photo.DataURI())

	_, err = ParsePhoto("https://example.com/a.png", 0)
	assert.ErrorIs(t, err, ErrMalformedDataURI)

	_, err = ParsePhoto("data:image/png,"+payload, 0)
	assert.ErrorIs(t, err, ErrMalformedDataURI)

	_, err = ParsePhoto("data:application/pdf;base64,"+payload, 0)
	assert.ErrorIs(t, err, ErrUnsupportedMedia)

	_, err = ParsePhoto("data:image/png;base64,!!!", 0)
	assert.ErrorIs(t, err, ErrMalformedDataURI)

	_, err = ParsePhoto("data:image/png;base64,"+payload, 4)
	assert.ErrorIs(t, err, ErrPhotoTooLarge)
}

func TestParsePhotos_Limit(t *testing.T) {
	uri := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString([]byte("jpg"))

	photos, err := ParsePhotos(strings.Split(strings.Repeat(uri+" ", MaxPhotos), " ")[:MaxPhotos], 0)
	require.NoError(t, err)
	assert.Len(t, photos, MaxPhotos)

	_, err = ParsePhotos(make([]string, MaxPhotos+1), 0)
	assert.ErrorIs(t, err, ErrTooManyPhotos)
}
