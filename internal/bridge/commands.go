package bridge

import "github.com/kitsune-lab/syncstage/internal/errs"

// capabilities lists the source.Capability values (by their underlying
// string, kept local to avoid importing internal/source) this hub can
// serve, mirroring the command set spec §4.6 lists for the extension.
var capabilities = []string{
	"play_pause", "next", "previous", "seek", "volume", "shuffle", "repeat", "like", "queue",
}

// mapControl translates one of C1's capability actions into the extension's
// wire command name and argument shape.
func mapControl(action string, args map[string]any) (cmdType string, cmdArgs map[string]any, err error) {
	switch action {
	case "play_pause":
		return "toggle_play", nil, nil
	case "next":
		return "skip_next", nil, nil
	case "previous":
		return "skip_prev", nil, nil
	case "seek":
		pos, ok := args["position_ms"]
		if !ok {
			return "", nil, errs.Misconfigured("seek requires position_ms", nil)
		}
		return "seek", map[string]any{"position_ms": pos}, nil
	case "volume":
		level, ok := args["level"]
		if !ok {
			return "", nil, errs.Misconfigured("volume requires level", nil)
		}
		return "set_volume", map[string]any{"volume": level}, nil
	case "shuffle":
		enabled, ok := args["enabled"]
		if !ok {
			return "", nil, errs.Misconfigured("shuffle requires enabled", nil)
		}
		return "set_shuffle", map[string]any{"state": enabled}, nil
	case "repeat":
		value, ok := args["value"]
		if !ok {
			return "", nil, errs.Misconfigured("repeat requires value", nil)
		}
		return "set_repeat", map[string]any{"repeat": value}, nil
	case "like":
		a, _ := args["action"].(string)
		return "set_heart", map[string]any{"value": a == "like"}, nil
	case "queue":
		a, _ := args["action"].(string)
		switch a {
		case "add":
			return "add_to_queue", map[string]any{"uri": args["uri"]}, nil
		case "clear":
			return "clear_queue", nil, nil
		case "get":
			return "get_queue", nil, nil
		default:
			return "", nil, errs.Misconfigured("queue requires action in {add,clear,get}", nil)
		}
	default:
		return "", nil, errs.Misconfigured("unsupported capability for spicetify bridge: "+action, nil)
	}
}
