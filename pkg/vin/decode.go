package vin

// DecodeLocal derives an approximate year, make and model from character
// positions alone. It is a lossy placeholder for an authoritative lookup and
// always reports SourceLocalHeuristic.
//
// Callers should validate first, but DecodeLocal accepts anything: missing
// positions fall back to defaults so partial camera reads still render.
func DecodeLocal(s string) VehicleInfo {
	return DecodeLocalAs(s, ScanCamera)
}

// DecodeLocalAs is DecodeLocal with an explicit capture method.
func DecodeLocalAs(s string, method ScanMethod) VehicleInfo {
	var yearCode byte
	if len(s) >= 10 {
		yearCode = s[9]
	}

	wmi := s
	if len(wmi) > 3 {
		wmi = wmi[:3]
	}
	mk, model := MakeModelFromWMI(wmi)

	if method == "" {
		method = ScanCamera
	}

	return VehicleInfo{
		VIN:       s,
		Year:      YearFromCode(yearCode),
		Make:      mk,
		Model:     model,
		Source:    SourceLocalHeuristic,
		ScannedBy: method,
	}
}
