package shikijin

// Capable reports whether every required capability is present in possessed.
// Capabilities are compared by ID. An empty requirement matches any worker.
func Capable(required, possessed []Capability) bool {
	if len(required) == 0 {
		return true
	}
	have := make(map[CapabilityID]struct{}, len(possessed))
	for _, c := range possessed {
		have[c.ID] = struct{}{}
	}
	for _, c := range required {
		if _, ok := have[c.ID]; !ok {
			return false
		}
	}
	return true
}
