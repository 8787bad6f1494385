package constants

const (
	ViewPossessions     = "view_possessions"
	ManagePossessions   = "manage_possessions"
	HandoverPossessions = "handover_possessions"
	RemovePossessions   = "remove_possessions"
)
