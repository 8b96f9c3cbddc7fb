package disk

// Usage describes the filesystem holding a path
type Usage struct {
	FreeBytes  int64 // Space available to unprivileged users
	TotalBytes int64 // Total capacity of the filesystem
}

// UsedPercent returns the share of the filesystem in use
func (u Usage) UsedPercent() float64 {
	if u.TotalBytes <= 0 {
		return 0
	}
	return float64(u.TotalBytes-u.FreeBytes) / float64(u.TotalBytes) * 100.0
}
