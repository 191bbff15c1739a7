package propagation

import (
	"context"
	"fmt"
)

// recordingPlugin appends "<extract|inject>:<tag>:<field>:<ok>" to a shared
// log for every field it observes, on both extract and inject, and appends
// "+<tag>" to every present value, letting tests assert plugin order (spec
// testable property #4).
type recordingPlugin struct {
	tag    string
	fields []string
	log    *[]string
}

func (p *recordingPlugin) FieldNames() []string { return p.fields }

func (p *recordingPlugin) ExtractFactory(*ExtractFlags) Updater {
	return UpdaterFunc(func(name, value string, ok bool) (string, bool) {
		*p.log = append(*p.log, fmt.Sprintf("extract:%s:%s:%v", p.tag, name, ok))
		if !ok {
			return value, ok
		}
		return value + "+" + p.tag, true
	})
}

func (p *recordingPlugin) InjectFactory(context.Context) Updater {
	return UpdaterFunc(func(name, value string, ok bool) (string, bool) {
		*p.log = append(*p.log, fmt.Sprintf("inject:%s:%s:%v", p.tag, name, ok))
		if !ok {
			return value, ok
		}
		return value + "+" + p.tag, true
	})
}

func (p *recordingPlugin) FinishedSpanHandler() FinishedSpanHandler { return nil }

var _ Plugin = (*recordingPlugin)(nil)

// panicPlugin always panics from its extract updater, used to test
// exception isolation (E5).
type panicPlugin struct {
	fields []string
}

func (p *panicPlugin) FieldNames() []string { return p.fields }

func (p *panicPlugin) ExtractFactory(*ExtractFlags) Updater {
	return UpdaterFunc(func(name, value string, ok bool) (string, bool) {
		panic("boom")
	})
}

func (p *panicPlugin) InjectFactory(context.Context) Updater {
	return passthroughUpdater
}

func (p *panicPlugin) FinishedSpanHandler() FinishedSpanHandler { return nil }

var _ Plugin = (*panicPlugin)(nil)
