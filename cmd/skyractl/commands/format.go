package commands

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pterm/pterm"
)

// boxFields and channelFields fix the order of parseable output.
var (
	boxFields     = []string{"id", "name", "port", "serial_number", "state", "key_switch", "last_seen", "last_error"}
	channelFields = []string{"name", "index", "wavelength_nm", "power_mw", "max_power_mw", "on", "active"}
)

// BoxTableData returns the table data for a box, with bold ID and value
func BoxTableData(id string, box map[string]any) pterm.TableData {
	data := pterm.TableData{
		[]string{pterm.Bold.Sprint("ID"), pterm.Bold.Sprint(id)},
		[]string{"Name", fmt.Sprintf("%v", box["name"])},
		[]string{"Port", fmt.Sprintf("%v", box["port"])},
		[]string{"Serial", fmt.Sprintf("%v", box["serial_number"])},
		[]string{"State", fmt.Sprintf("%v", box["state"])},
		[]string{"Key Switch", onOff(box["key_switch"])},
		[]string{"Connected", formatTimestamp(box["connected_at"])},
		[]string{"Last Seen", formatTimestamp(box["last_seen"])},
	}
	if msg, _ := box["last_error"].(string); msg != "" {
		data = append(data, []string{"Last Error", pterm.Red(msg)})
	}
	return data
}

// ChannelsTableData returns one header row plus one row per channel.
func ChannelsTableData(channels []map[string]any) pterm.TableData {
	data := pterm.TableData{{"Channel", "Index", "Wavelength", "Power", "Max", "On", "Active"}}
	for _, ch := range channels {
		data = append(data, []string{
			fmt.Sprintf("%v", ch["name"]),
			fmt.Sprintf("%v", ch["index"]),
			formatWavelength(ch["wavelength_nm"]),
			formatMilliwatts(ch["power_mw"]),
			formatMilliwatts(ch["max_power_mw"]),
			onOff(ch["on"]),
			onOff(ch["active"]),
		})
	}
	return data
}

// BoxParseable returns the parseable key=value string for a box
func BoxParseable(id string, box map[string]any) string {
	box = cloneWith(box, "id", id)
	box["last_seen"] = unixTimestamp(box["last_seen"])
	return keyValues(boxFields, box)
}

// ChannelParseable returns the parseable key=value string for a channel,
// prefixed with the box it belongs to.
func ChannelParseable(boxID string, ch map[string]any) string {
	return fmt.Sprintf("box=%q %s", boxID, keyValues(channelFields, ch))
}

// boxChannels extracts the channel list from a decoded box.
func boxChannels(box map[string]any) []map[string]any {
	raw, _ := box["channels"].([]any)
	out := make([]map[string]any, 0, len(raw))
	for _, r := range raw {
		if m, ok := r.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

// sortedIDs returns the keys of a decoded box map in order.
func sortedIDs(boxes map[string]any) []string {
	ids := make([]string, 0, len(boxes))
	for id := range boxes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func keyValues(fields []string, m map[string]any) string {
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		val, ok := m[f]
		if !ok {
			continue
		}
		switch v := val.(type) {
		case string:
			parts = append(parts, fmt.Sprintf("%s=%q", f, v))
		case float64:
			parts = append(parts, f+"="+strconv.FormatFloat(v, 'f', -1, 64))
		default:
			parts = append(parts, fmt.Sprintf("%s=%v", f, v))
		}
	}
	return strings.Join(parts, " ")
}

func cloneWith(m map[string]any, key string, val any) map[string]any {
	out := make(map[string]any, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	out[key] = val
	return out
}

// parseTimestamp accepts the RFC 3339 strings the daemon encodes, or a time.Time.
func parseTimestamp(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, !t.IsZero()
	case string:
		parsed, err := time.Parse(time.RFC3339Nano, t)
		if err != nil || parsed.IsZero() {
			return time.Time{}, false
		}
		return parsed, true
	}
	return time.Time{}, false
}

// formatTimestamp formats a timestamp for display
func formatTimestamp(v any) string {
	t, ok := parseTimestamp(v)
	if !ok || t.Unix() <= 0 {
		return "Never"
	}
	return t.Format(time.RFC1123)
}

func unixTimestamp(v any) int64 {
	t, ok := parseTimestamp(v)
	if !ok || t.Unix() <= 0 {
		return 0
	}
	return t.Unix()
}

func formatMilliwatts(v any) string {
	f, ok := v.(float64)
	if !ok {
		return "-"
	}
	return strconv.FormatFloat(f, 'f', 1, 64) + " mW"
}

func formatWavelength(v any) string {
	s, _ := v.(string)
	if s == "" || s == "0" {
		return "-"
	}
	return s + " nm"
}

func onOff(v any) string {
	if b, _ := v.(bool); b {
		return pterm.Green("on")
	}
	return "off"
}
