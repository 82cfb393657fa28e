package core

import glog "github.com/goliatone/go-logger/glog"

var (
	_ Sender          = (*TransportSender)(nil)
	_ Sender          = SenderFunc(nil)
	_ Requester       = (*Client)(nil)
	_ FileSource      = FilePath("")
	_ FileSource      = FileHandle{}
	_ ConfigProvider  = (*CfgxConfigProvider)(nil)
	_ OptionsResolver = GoOptionsResolver{}
	_ RawConfigLoader = StaticConfigLoader{}
	_ RawConfigLoader = EnvConfigLoader{}

	_ Logger         = glog.Nop()
	_ LoggerProvider = glog.ProviderFromLogger(glog.Nop())
)
