package mqtt

// Topics generates topic strings for the homeauto namespace.
//
// Topic layout:
//
//	homeauto/status/<device>  device reports (same payload as POST /status)
//	homeauto/system/status    server online/offline status (retained, LWT)
type Topics struct{}

const topicPrefix = "homeauto"

// StatusReport is the topic one device publishes its reports on.
func (Topics) StatusReport(device string) string {
	return topicPrefix + "/status/" + device
}

// StatusReports matches every device's report topic.
func (Topics) StatusReports() string {
	return topicPrefix + "/status/+"
}

// SystemStatus carries the server's online/offline status, including the
// broker-published LWT on unexpected disconnect.
func (Topics) SystemStatus() string {
	return topicPrefix + "/system/status"
}
