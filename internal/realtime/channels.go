package realtime

import "fmt"

// Redis pub/sub channels feeding the websocket hub. Every message carries a
// full snapshot for its topic, not a diff.
const (
	// ChannelDoctors carries the full list of available doctors.
	ChannelDoctors = "teleseva:events:available-doctors"

	// channelAppointmentsPrefix namespaces per-user appointment snapshots.
	channelAppointmentsPrefix = "teleseva:events:appointments:"
)

// ChannelAppointments returns the per-user appointments channel.
func ChannelAppointments(userID string) string {
	return channelAppointmentsPrefix + userID
}

// ChannelAppointmentsPattern matches every per-user appointments channel.
func ChannelAppointmentsPattern() string {
	return fmt.Sprintf("%s*", channelAppointmentsPrefix)
}

// UserFromAppointmentsChannel extracts the user ID from a channel name, or ""
// if the channel is not an appointments channel.
func UserFromAppointmentsChannel(channel string) string {
	if len(channel) <= len(channelAppointmentsPrefix) {
		return ""
	}
	if channel[:len(channelAppointmentsPrefix)] != channelAppointmentsPrefix {
		return ""
	}
	return channel[len(channelAppointmentsPrefix):]
}
