package main

import "github.com/nextui/musicplayer/netfetch"

func newDefaultClient() *netfetch.Client {
	return netfetch.New(netfetch.DefaultTimeout, netfetch.GeneralRedirectLimit)
}

// newRadioClient builds the tighter-capped client used solely for direct
// radio stream connects.
func newRadioClient() *netfetch.Client {
	return netfetch.New(netfetch.DefaultTimeout, netfetch.RadioRedirectLimit)
}
