package weather

// TemperatureUnit returns the label a temperature carries in the given unit system.
func TemperatureUnit(units Units) string {
	if units == UnitsImperial {
		return "F"
	}
	return "C"
}

// ToReadings maps a snapshot to typed readings. Each field is handled on its
// own: a missing field is reported through *IncompleteDataError while readings
// for the present fields are still returned.
func ToReadings(snapshot WeatherSnapshot, units Units) (ReadingSet, error) {
	readings := make(ReadingSet, 0, 2)
	var missing []AttributeKind

	if snapshot.Temperature != nil {
		readings = append(readings, Reading{
			Kind:  KindTemperature,
			Value: *snapshot.Temperature,
			Unit:  TemperatureUnit(units),
		})
	} else {
		missing = append(missing, KindTemperature)
	}

	if snapshot.Humidity != nil {
		readings = append(readings, Reading{
			Kind:  KindHumidity,
			Value: *snapshot.Humidity,
			Unit:  "%",
		})
	} else {
		missing = append(missing, KindHumidity)
	}

	if len(missing) > 0 {
		return readings, &IncompleteDataError{Missing: missing}
	}
	return readings, nil
}
