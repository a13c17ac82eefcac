//go:build tinygo

package main

import (
	"context"
	"device/rp"
	"machine"

	"github.com/itohio/vivarium/pkg/adc"
	"github.com/itohio/vivarium/pkg/sample"
)

var _ adc.Converter = (*boardADC)(nil)

// boardADC is the RP2040 converter. Callers are serialized by adc.Peripheral,
// so no locking here.
type boardADC struct {
	reference machine.ADC
}

func newBoardADC() (*boardADC, error) {
	machine.InitADC()
	ref := machine.ADC{Pin: PIN_REFERENCE_ADC}
	if err := ref.Configure(machine.ADCConfig{}); err != nil {
		return nil, err
	}
	return &boardADC{reference: ref}, nil
}

func (b *boardADC) Read(ctx context.Context, ch adc.Channel) (sample.Raw, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	switch ch {
	case adc.ChannelReference:
		// Get scales the 12-bit result to 16 bits.
		return sample.Raw(b.reference.Get() >> 4), nil
	case adc.ChannelDieTemp:
		return dieTemperatureRaw(), nil
	}
	return 0, adc.ErrInvalidChannel
}

func (b *boardADC) Close() error {
	return nil
}

// dieTemperatureRaw runs one conversion on ADC4. machine.ADC only exposes the
// die sensor as degrees, and the pipeline publishes raw samples.
func dieTemperatureRaw() sample.Raw {
	rp.ADC.CS.SetBits(rp.ADC_CS_TS_EN)
	rp.ADC.CS.ReplaceBits(uint32(adc.ChannelDieTemp)<<rp.ADC_CS_AINSEL_Pos, rp.ADC_CS_AINSEL_Msk, 0)
	rp.ADC.CS.SetBits(rp.ADC_CS_START_ONCE)
	for !rp.ADC.CS.HasBits(rp.ADC_CS_READY) {
	}
	return sample.Raw(rp.ADC.RESULT.Get() & 0xFFF)
}
