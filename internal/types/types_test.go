package types_test

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nens/brostar-sync/internal/types"
)

func TestUploadTaskAliasDecoding(t *testing.T) {
	t.Run("CamelCase", func(t *testing.T) {
		raw := `{
			"uuid": "abc",
			"broDomain": "GLD",
			"projectNumber": "1",
			"registrationType": "GLD_Addition",
			"requestType": "registration",
			"metadata": {"requestReference": "ref-1", "qualityRegime": "IMBRO", "broId": "GLD000000001"},
			"sourcedocumentData": {},
			"status": "COMPLETED",
			"broId": "GLD000000001"
		}`

		var task types.UploadTask
		require.NoError(t, json.Unmarshal([]byte(raw), &task))

		assert.Equal(t, types.BroDomainGLD, task.BroDomain)
		assert.Equal(t, "GLD000000001", task.BroID)
		assert.Equal(t, "ref-1", task.Metadata.RequestReference)
	})

	t.Run("SnakeCase", func(t *testing.T) {
		raw := `{
			"uuid": "abc",
			"bro_domain": "GMW",
			"project_number": "1",
			"registration_type": "GMW_Construction",
			"request_type": "registration",
			"metadata": {"request_reference": "ref-2", "quality_regime": "IMBRO/A"},
			"sourcedocument_data": {},
			"bro_id": "GMW000000001",
			"bro_delivery_url": "https://example.test/delivery"
		}`

		var task types.UploadTask
		require.NoError(t, json.Unmarshal([]byte(raw), &task))

		assert.Equal(t, types.BroDomainGMW, task.BroDomain)
		assert.Equal(t, "GMW000000001", task.BroID)
		assert.Equal(t, "https://example.test/delivery", task.BroDeliveryURL)
		assert.Equal(t, "ref-2", task.Metadata.RequestReference)
		assert.Equal(t, "IMBRO/A", task.Metadata.QualityRegime)
	})

	t.Run("NumericStrings", func(t *testing.T) {
		raw := `{"tube_number": "2.0", "screen_length": "1.5", "tube_type": "standaardbuis",
			"artesian_well_cap_present": "nee", "sediment_sump_present": "nee",
			"variable_diameter": "nee", "tube_status": "gebruiksklaar",
			"tube_top_position": "1.2", "tube_top_positioning_method": "RTKGPS0tot4cm",
			"tube_packing_material": "bentoniet", "tube_material": "pvc", "glue": "geen",
			"sock_material": "geen", "plain_tube_part_length": 8}`

		var tube types.MonitoringTube
		require.NoError(t, json.Unmarshal([]byte(raw), &tube))

		assert.Equal(t, types.Int(2), tube.TubeNumber)
		assert.InDelta(t, 1.5, float64(tube.ScreenLength), 1e-9)
		require.NotNil(t, tube.TubeTopPosition)
		assert.InDelta(t, 1.2, float64(*tube.TubeTopPosition), 1e-9)
	})
}

func TestUploadTaskValidate(t *testing.T) {
	base := func() types.UploadTask {
		return types.UploadTask{
			BroDomain:        types.BroDomainGLD,
			ProjectNumber:    "1",
			RegistrationType: types.RegistrationTypeGLDAddition,
			RequestType:      types.RequestTypeRegistration,
			Metadata: types.UploadTaskMetadata{
				RequestReference: "ref",
				QualityRegime:    types.QualityRegimeIMBRO,
			},
			SourceDocument: map[string]any{},
		}
	}

	t.Run("Valid", func(t *testing.T) {
		task := base()
		require.NoError(t, task.Validate())
	})

	t.Run("RegistrationRejectsCorrectionReason", func(t *testing.T) {
		task := base()
		task.Metadata.CorrectionReason = types.CorrectionReasonOwn
		err := task.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "correctionReason")
	})

	t.Run("CorrectionRequiresReason", func(t *testing.T) {
		task := base()
		task.RequestType = types.RequestTypeReplace
		err := task.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "correctionReason")
	})

	t.Run("BadQualityRegime", func(t *testing.T) {
		task := base()
		task.Metadata.QualityRegime = "IMBRO2"
		require.Error(t, task.Validate())
	})

	t.Run("BadRequestType", func(t *testing.T) {
		task := base()
		task.RequestType = "upsert"
		require.Error(t, task.Validate())
	})
}

func TestGMWConstructionValidate(t *testing.T) {
	tube := func() types.MonitoringTube {
		top := types.Float(1.2)
		return types.MonitoringTube{
			TubeNumber:               1,
			TubeType:                 "standaardbuis",
			ArtesianWellCapPresent:   "nee",
			SedimentSumpPresent:      "nee",
			VariableDiameter:         "nee",
			TubeStatus:               "gebruiksklaar",
			TubeTopPosition:          &top,
			TubeTopPositioningMethod: "RTKGPS0tot4cm",
			TubePackingMaterial:      "bentoniet",
			TubeMaterial:             "pvc",
			Glue:                     "geen",
			ScreenLength:             1.0,
			SockMaterial:             "geen",
			PlainTubePartLength:      8.0,
		}
	}
	construction := func() types.GMWConstruction {
		offset := types.Float(0)
		return types.GMWConstruction{
			ObjectIDAccountableParty:     "put-001",
			DeliveryContext:              "publiekeTaak",
			ConstructionStandard:         "onbekend",
			InitialFunction:              "stand",
			GroundLevelStable:            "onbekend",
			WellHeadProtector:            "onbekend",
			WellConstructionDate:         "2010-06-01",
			DeliveredLocation:            "100000 400000",
			HorizontalPositioningMethod:  "RTKGPS2tot5cm",
			LocalVerticalReferencePoint:  "NAP",
			Offset:                       &offset,
			VerticalDatum:                "NAP",
			GroundLevelPositioningMethod: "RTKGPS0tot4cm",
			MonitoringTubes:              []types.MonitoringTube{tube()},
		}
	}

	t.Run("Valid", func(t *testing.T) {
		c := construction()
		require.NoError(t, c.Validate())
		assert.Equal(t, types.Int(1), c.NumberOfMonitoringTubes)
	})

	t.Run("ClampsShortTubeParts", func(t *testing.T) {
		c := construction()
		c.MonitoringTubes[0].ScreenLength = 0.1
		c.MonitoringTubes[0].PlainTubePartLength = 0.0
		require.NoError(t, c.Validate())
		assert.InDelta(t, 0.5, float64(c.MonitoringTubes[0].ScreenLength), 1e-9)
		assert.InDelta(t, 0.5, float64(c.MonitoringTubes[0].PlainTubePartLength), 1e-9)
	})

	t.Run("DerivesCableCount", func(t *testing.T) {
		c := construction()
		c.MonitoringTubes[0].GeoOhmCables = []types.GeoOhmCable{{CableNumber: 1}}
		require.NoError(t, c.Validate())
		require.NotNil(t, c.MonitoringTubes[0].NumberOfGeoOhmCables)
		assert.Equal(t, types.Int(1), *c.MonitoringTubes[0].NumberOfGeoOhmCables)
	})

	t.Run("MissingFieldNamesJSONKey", func(t *testing.T) {
		c := construction()
		c.ConstructionStandard = ""
		err := c.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "constructionStandard")
	})

	t.Run("NoTubes", func(t *testing.T) {
		c := construction()
		c.MonitoringTubes = nil
		require.Error(t, c.Validate())
	})
}

func TestGLDAdditionValidate(t *testing.T) {
	addition := func() types.GLDAddition {
		value := types.Float(1.23)
		return types.GLDAddition{
			InvestigatorKvK:           "12345678",
			ObservationType:           types.ObservationTypeRegular,
			EvaluationProcedure:       "brabantWater2013",
			MeasurementInstrumentType: "druksensor",
			ProcessReference:          "NEN5120v1991",
			BeginPosition:             "2024-01-01",
			EndPosition:               "2024-01-31",
			TimeValuePairs: []types.TimeValuePair{{
				Time:                 "2024-01-01T12:00:00+01:00",
				Value:                &value,
				StatusQualityControl: "goedgekeurd",
			}},
		}
	}

	t.Run("RegularDefaultsValidationStatus", func(t *testing.T) {
		a := addition()
		require.NoError(t, a.Validate())
		require.NotNil(t, a.ValidationStatus)
		assert.Equal(t, types.ValidationStatusUnknown, *a.ValidationStatus)
	})

	t.Run("ControlClearsValidationStatus", func(t *testing.T) {
		a := addition()
		a.ObservationType = types.ObservationTypeControl
		status := "voorlopig"
		a.ValidationStatus = &status
		require.NoError(t, a.Validate())
		assert.Nil(t, a.ValidationStatus)

		encoded, err := json.Marshal(&a)
		require.NoError(t, err)
		assert.Contains(t, string(encoded), `"validationStatus":null`)
	})

	t.Run("ExplicitStatusKept", func(t *testing.T) {
		a := addition()
		status := "volledigBeoordeeld"
		a.ValidationStatus = &status
		require.NoError(t, a.Validate())
		assert.Equal(t, "volledigBeoordeeld", *a.ValidationStatus)
	})

	t.Run("GeneratesObservationIDs", func(t *testing.T) {
		a := addition()
		require.NoError(t, a.Validate())
		assert.True(t, strings.HasPrefix(a.ObservationID, "_"))
		assert.True(t, strings.HasPrefix(a.ObservationProcessID, "_"))
		assert.True(t, strings.HasPrefix(a.MeasurementTimeseriesID, "_"))
	})

	t.Run("KeepsProvidedIDs", func(t *testing.T) {
		a := addition()
		a.ObservationID = "_fixed"
		require.NoError(t, a.Validate())
		assert.Equal(t, "_fixed", a.ObservationID)
	})

	t.Run("NoPairs", func(t *testing.T) {
		a := addition()
		a.TimeValuePairs = nil
		require.Error(t, a.Validate())
	})
}

func TestTimestampFormatting(t *testing.T) {
	t.Run("ColonOffset", func(t *testing.T) {
		when := time.Date(2024, 7, 1, 10, 0, 0, 0, time.UTC)
		formatted := types.FormatTimestamp(when)
		assert.Equal(t, "2024-07-01T12:00:00+02:00", formatted)
	})

	t.Run("WinterOffset", func(t *testing.T) {
		when := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
		formatted := types.FormatTimestamp(when)
		assert.Equal(t, "2024-01-15T11:00:00+01:00", formatted)
	})

	t.Run("DatePart", func(t *testing.T) {
		assert.Equal(t, "2024-07-01", types.DatePart("2024-07-01T12:00:00+02:00"))
		assert.Equal(t, "2024-07-01", types.DatePart("2024-07-01"))
	})
}
