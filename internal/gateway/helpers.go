package gateway

import "github.com/kitsune-lab/syncstage/internal/trackkey"

func trackkeyProviderID(s string) trackkey.ProviderID { return trackkey.ProviderID(s) }
