package vin

// MergeRemote folds a gateway answer into a local heuristic record.
//
// If remoteErr is non-nil the local record is returned unchanged together with
// remoteErr, which callers treat as a soft degradation. Otherwise every
// non-empty remote field replaces the local one, and the source becomes
// SourceRemoteAuthoritative only if at least one field came from the remote.
// VIN and ScannedBy always come from local.
func MergeRemote(local VehicleInfo, remote RemoteInfo, remoteErr error) (VehicleInfo, error) {
	if remoteErr != nil {
		return local, remoteErr
	}

	merged := local
	fromRemote := false
	if remote.Year != "" {
		merged.Year = remote.Year
		fromRemote = true
	}
	if remote.Make != "" {
		merged.Make = remote.Make
		fromRemote = true
	}
	if remote.Model != "" {
		merged.Model = remote.Model
		fromRemote = true
	}
	if fromRemote {
		merged.Source = SourceRemoteAuthoritative
	}
	return merged, nil
}
