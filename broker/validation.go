// SPDX-FileCopyrightText: 2026 The mtcagent Authors
// SPDX-License-Identifier: Apache-2.0

package broker

import (
	"fmt"
	"strconv"
	"time"

	"github.com/mtconnect-go/mtcagent/model"
)

// buildObservation validates an input against its data item definition and
// produces the immutable record to sequence. UNAVAILABLE passes every shape
// check: any data item may become unavailable at any time.
func buildObservation(deviceUUID string, di model.DataItem, in ObservationInput) (model.Observation, error) {
	ts := in.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	obs := model.Observation{
		DeviceUUID: deviceUUID,
		DataItemID: di.ID,
		Timestamp:  ts,
		Category:   di.Category,
	}

	if di.Category == model.CategoryCondition {
		if err := validateCondition(in.Condition); err != nil {
			return model.Observation{}, err
		}
		obs.Condition = in.Condition
		obs.ChangeID = changeID(&obs)
		return obs, nil
	}

	value := in.Value
	if value.Representation == "" {
		value.Representation = di.Representation
	}
	if err := validateValue(di, value); err != nil {
		return model.Observation{}, err
	}
	obs.Value = value
	obs.ChangeID = changeID(&obs)
	return obs, nil
}

func validateCondition(c model.Condition) error {
	switch c.Level {
	case model.ConditionNormal, model.ConditionWarning,
		model.ConditionFault, model.ConditionUnavailable:
		return nil
	case "":
		return fmt.Errorf("condition level is required")
	default:
		return fmt.Errorf("unknown condition level %q", c.Level)
	}
}

func validateValue(di model.DataItem, v model.Value) error {
	if v.IsUnavailable() {
		return nil
	}
	if v.Representation != di.Representation {
		return fmt.Errorf("representation %q does not match data item representation %q",
			v.Representation, di.Representation)
	}

	switch v.Representation {
	case model.RepresentationValue:
		if v.Scalar == "" {
			return fmt.Errorf("scalar value is required")
		}
		if di.Category == model.CategorySample {
			if _, err := strconv.ParseFloat(v.Scalar, 64); err != nil {
				return fmt.Errorf("sample value %q is not numeric", v.Scalar)
			}
		}
	case model.RepresentationDataSet, model.RepresentationTable:
		if len(v.Entries) == 0 {
			return fmt.Errorf("%s value requires at least one entry", v.Representation)
		}
		for _, e := range v.Entries {
			if e.Key == "" {
				return fmt.Errorf("%s entry key is required", v.Representation)
			}
		}
	case model.RepresentationTimeSeries:
		if len(v.Series) == 0 {
			return fmt.Errorf("time series value requires at least one sample")
		}
	default:
		return fmt.Errorf("unknown representation %q", v.Representation)
	}
	return nil
}
