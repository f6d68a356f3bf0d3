// Package opl implements a register-level programming model for the
// Yamaha YM3812 (OPL2) FM synthesizer chip, of the kind used by AdLib and
// Sound Blaster cards. It never touches real hardware or a software
// synthesizer: every effect of a call is a sequence of (register, value)
// writes pushed through a single hook, so a recorder (or, in principle, a
// real driver) can sit behind the engine without it knowing.
package opl

// Per-voice and operator layout, fixed by the OPL2 register map.
const (
	OperatorCount        = 18
	ParamCount            = 14
	PitchStepCount        = 25
	HalfToneCount         = 12
	OperatorsPerVoice     = 2
	MelodyVoiceCount      = 9
	PercussionVoiceCount  = 5
	MaxVoiceCount         = 11
	OctaveCount           = 8
	NoteCount             = HalfToneCount * OctaveCount

	MaxVolume = 0x7F
	MaxPitch  = 0x3FFF
	MidPitch  = 0x2000

	StandardMidC = 60 // Middle C in standard MIDI note numbering.
	OPLMidC      = 48 // Middle C as this engine counts OPL notes.

	SampleRate = 44100
)

// Voice indices. In percussion mode voices 6..10 stop being melody voices
// and become the five rhythm instruments.
const (
	VoiceMelody0 = 0
	VoiceMelody1 = 1
	VoiceMelody2 = 2
	VoiceMelody3 = 3
	VoiceMelody4 = 4
	VoiceMelody5 = 5
	VoiceMelody6 = 6
	VoiceMelody7 = 7
	VoiceMelody8 = 8

	VoiceBaseDrum  = 6
	VoiceSnareDrum = 7
	VoiceTom       = 8
	VoiceCymbal    = 9
	VoiceHihat     = 10
)

// Operator parameter indices, in the fixed order the params arrays carry.
const (
	ParamKeyScaleLevel = iota
	ParamFreqMulti
	ParamFeedback
	ParamAttack
	ParamSustain
	ParamSustaining
	ParamDecay
	ParamRelease
	ParamLevel
	ParamAM
	ParamVib
	ParamKeyScaleRate
	ParamFM
	ParamWaveSelect
)

const (
	pitchTom        = 24
	pitchTomToSnare = 7
	pitchSnareDrum  = pitchTom + pitchTomToSnare
)

// Is the operator a modulator (0) or a carrier (1)?
var operatorType = [OperatorCount]uint8{
	0, 0, 0, 1, 1, 1,
	0, 0, 0, 1, 1, 1,
	0, 0, 0, 1, 1, 1,
}

// Operator number to register offset on the OPL.
var operatorOffset = [OperatorCount]uint8{
	0, 1, 2, 3, 4, 5,
	8, 9, 10, 11, 12, 13,
	16, 17, 18, 19, 20, 21,
}

// For each operator, the voice it belongs to.
var operatorVoice = [OperatorCount]uint8{
	0, 1, 2, 0, 1, 2,
	3, 4, 5, 3, 4, 5,
	6, 7, 8, 6, 7, 8,
}

// Voice to operator set, for the 9 melody voices (only 6 usable in
// percussion mode).
var voiceMelodyOperator = [OperatorsPerVoice][MelodyVoiceCount]uint8{
	{0, 1, 2, 6, 7, 8, 12, 13, 14},
	{3, 4, 5, 9, 10, 11, 15, 16, 17},
}

// Voice to operator set, for the 5 percussion voices (only usable in
// percussion mode). Hi-hat only ever programs one operator; the second
// slot is zero-padded and unused.
var voicePercussionOperator = [OperatorsPerVoice][PercussionVoiceCount]uint8{
	{12, 16, 14, 17, 13},
	{15, 0, 0, 0, 0},
}

// Mask bits to set each percussion instrument on/off in register 0xBD.
var percussionMasks = [PercussionVoiceCount]byte{0x10, 0x08, 0x04, 0x02, 0x01}

// Default instrument presets, reproduced verbatim.
var pianoParams = [OperatorsPerVoice][ParamCount]uint16{
	{1, 1, 3, 15, 5, 0, 1, 3, 15, 0, 0, 0, 1, 0},
	{0, 1, 1, 15, 7, 0, 2, 4, 0, 0, 0, 1, 0, 0},
}
var baseDrumParams = [OperatorsPerVoice][ParamCount]uint16{
	{0, 0, 0, 10, 4, 0, 8, 12, 11, 0, 0, 0, 1, 0},
	{0, 0, 0, 13, 4, 0, 6, 15, 0, 0, 0, 0, 1, 0},
}
var snareDrumParams = [ParamCount]uint16{0, 12, 0, 15, 11, 0, 8, 5, 0, 0, 0, 0, 0, 0}
var tomParams = [ParamCount]uint16{0, 4, 0, 15, 11, 0, 7, 5, 0, 0, 0, 0, 0, 0}
var cymbalParams = [ParamCount]uint16{0, 1, 0, 15, 11, 0, 5, 5, 0, 0, 0, 0, 0, 0}
var hihatParams = [ParamCount]uint16{0, 1, 0, 15, 11, 0, 7, 5, 0, 0, 0, 0, 0, 0}

// WriteFunc is the trap every register write is pushed through. The engine
// never writes to hardware itself; a VGM recorder, or any other sink,
// implements this to capture the writes.
type WriteFunc func(reg, val byte)

// Engine holds all per-operator and per-voice OPL2 state and turns the
// public calls below into the minimal correct sequence of register writes.
// It has no I/O and cannot fail: invalid inputs are clamped or ignored.
type Engine struct {
	write WriteFunc

	tremoloDepth     bool
	vibratoDepth     bool
	keySplit         bool
	enableWaveSelect bool

	percussionMode bool
	percussionBits byte

	pitchRange     uint8
	pitchRangeStep int32

	voiceNote [MaxVoiceCount]uint8
	voiceOn   [MaxVoiceCount]bool

	operatorVolume [OperatorCount]uint8
	operatorParams [OperatorCount][ParamCount]byte

	freqs          [PitchStepCount][HalfToneCount]uint16
	freqRow        [MaxVoiceCount]int
	halfToneOffset [MaxVoiceCount]int32
}

// New creates an engine that emits every register write through write, and
// resets it to its power-on state.
func New(write WriteFunc) *Engine {
	e := &Engine{write: write}
	e.initFreqs()
	e.InitOPL()
	return e
}

// InitOPL resets all engine state to power-on defaults and reprograms the
// chip accordingly. New calls this once, when the engine is created.
func (e *Engine) InitOPL() {
	e.tremoloDepth = false
	e.vibratoDepth = false
	e.keySplit = false
	e.enableWaveSelect = true

	for i := range e.voiceNote {
		e.voiceNote[i] = 0
		e.voiceOn[i] = false
	}

	e.initOperatorVolumes()
	e.resetFreqs()

	e.SetPercussionMode(false)

	e.SetTremoloDepth(false)
	e.SetVibratoDepth(false)
	e.SetKeySplit(false)

	for i := 0; i < MelodyVoiceCount; i++ {
		e.voiceOff(i)
	}

	e.SetPitchRange(1)

	e.EnableWaveSelect(true)
}

// IsPercussionMode reports whether rhythm mode is currently active.
func (e *Engine) IsPercussionMode() bool {
	return e.percussionMode
}

// SetPercussionMode switches the engine between melody and rhythm mode.
func (e *Engine) SetPercussionMode(percussion bool) {
	if percussion {
		e.voiceOff(VoiceBaseDrum)
		e.voiceOff(VoiceSnareDrum)
		e.voiceOff(VoiceTom)

		e.setFreq(VoiceTom, pitchTom, false)
		e.setFreq(VoiceSnareDrum, pitchSnareDrum, false)
	}

	e.percussionMode = percussion
	e.percussionBits = 0

	e.initOperatorParams()
	e.writeTremoloVibratoDepthPercMode()
}

// EnableWaveSelect toggles whether operators may select a non-sine
// waveform.
func (e *Engine) EnableWaveSelect(enable bool) {
	e.enableWaveSelect = enable

	for i := 0; i < OperatorCount; i++ {
		e.write(0xE0+operatorOffset[i], 0)
	}

	if e.enableWaveSelect {
		e.write(0x01, 0x20)
	} else {
		e.write(0x01, 0)
	}
}

// SetPitchRange sets the number of semitones a full pitch bend covers,
// clamped to [0, 12].
func (e *Engine) SetPitchRange(semitones uint8) {
	if semitones > 12 {
		semitones = 12
	}
	e.pitchRange = semitones
	e.pitchRangeStep = int32(e.pitchRange) * PitchStepCount
}

// SetTremoloDepth toggles the chip-wide tremolo depth bit.
func (e *Engine) SetTremoloDepth(on bool) {
	e.tremoloDepth = on
	e.writeTremoloVibratoDepthPercMode()
}

// SetVibratoDepth toggles the chip-wide vibrato depth bit.
func (e *Engine) SetVibratoDepth(on bool) {
	e.vibratoDepth = on
	e.writeTremoloVibratoDepthPercMode()
}

// SetKeySplit toggles the chip-wide keyboard split bit.
func (e *Engine) SetKeySplit(on bool) {
	e.keySplit = on
	e.writeKeySplit()
}

// SetVoiceTimbre programs a voice's operators from a 28-parameter
// instrument: the first 13 parameters of operator 0, the first 13 of
// operator 1, then the two wave-select values.
func (e *Engine) SetVoiceTimbre(voice uint8, params [28]uint16) {
	params0 := params[0:13]
	params1 := params[13:26]
	wave0, wave1 := uint8(params[26]), uint8(params[27])

	voicePerc := int(voice) - VoiceBaseDrum

	switch {
	case !e.percussionMode || voice < VoiceBaseDrum:
		if voice < MelodyVoiceCount {
			e.setOperatorParams(voiceMelodyOperator[0][voice], params0, wave0)
			e.setOperatorParams(voiceMelodyOperator[1][voice], params1, wave1)
		}
	case voice == VoiceBaseDrum:
		e.setOperatorParams(voicePercussionOperator[0][voicePerc], params0, wave0)
		e.setOperatorParams(voicePercussionOperator[1][voicePerc], params1, wave1)
	default:
		e.setOperatorParams(voicePercussionOperator[0][voicePerc], params0, wave0)
	}
}

// SetVoiceVolume sets the volume (0..127) of a voice's carrier operator.
func (e *Engine) SetVoiceVolume(voice uint8, volume uint8) {
	if volume > MaxVolume {
		volume = MaxVolume
	}

	var oper uint8
	voicePerc := int(voice) - VoiceBaseDrum
	if !e.percussionMode || voice < VoiceBaseDrum {
		oper = voiceMelodyOperator[1][voice]
	} else if voice == VoiceBaseDrum {
		oper = voicePercussionOperator[1][voicePerc]
	} else {
		oper = voicePercussionOperator[0][voicePerc]
	}

	e.operatorVolume[oper] = volume
	e.writeKeyScaleLevelVolume(oper)
}

// BendVoicePitch applies a 14-bit pitch bend (0x2000 = no bend) to a voice.
// Ignored for percussion voices other than the base drum.
func (e *Engine) BendVoicePitch(voice uint8, pitchBend uint16) {
	if e.percussionMode && voice > VoiceBaseDrum {
		return
	}

	if pitchBend > MaxPitch {
		pitchBend = MaxPitch
	}
	e.changePitch(voice, pitchBend)
	e.setFreq(voice, e.voiceNote[voice], e.voiceOn[voice])
}

// NoteOn starts a note on a voice. note is a standard-MIDI-relative note
// number; it is rebased onto the OPL's own middle C before being clamped.
func (e *Engine) NoteOn(voice uint8, note uint8) {
	n := int(note) - (StandardMidC - OPLMidC)
	if n < 0 {
		n = 0
	}

	if e.percussionMode && voice >= VoiceBaseDrum {
		switch voice {
		case VoiceBaseDrum:
			e.setFreq(VoiceBaseDrum, uint8(n), false)
		case VoiceTom:
			e.setFreq(VoiceTom, uint8(n), false)
			e.setFreq(VoiceSnareDrum, uint8(n+pitchTomToSnare), false)
		}

		e.percussionBits |= percussionMasks[voice-VoiceBaseDrum]
		e.writeTremoloVibratoDepthPercMode()
	} else {
		e.setFreq(voice, uint8(n), true)
	}
}

// NoteOff stops whatever note is currently playing on a voice.
func (e *Engine) NoteOff(voice uint8) {
	if e.percussionMode && voice >= VoiceBaseDrum {
		e.percussionBits &^= percussionMasks[voice-VoiceBaseDrum]
		e.writeTremoloVibratoDepthPercMode()
	} else {
		e.setFreq(voice, e.voiceNote[voice], false)
	}
}

// End marks the song as finished. killRepeat is accepted for interface
// parity with the reference player but never consulted: looping is out of
// scope here.
func (e *Engine) End(killRepeat bool) {
	_ = killRepeat
}

func (e *Engine) writeKeyScaleLevelVolume(oper uint8) {
	tmp := int((63 - (e.operatorParams[oper][ParamLevel] & 0x3F))) * int(e.operatorVolume[oper])
	volume := 63 - ((2*tmp + MaxVolume) / (2 * MaxVolume))

	keyScale := e.operatorParams[oper][ParamKeyScaleLevel] << 6

	e.write(0x40+operatorOffset[oper], byte(volume)|keyScale)
}

func (e *Engine) writeKeySplit() {
	if e.keySplit {
		e.write(0x08, 0x40)
	} else {
		e.write(0x08, 0)
	}
}

func (e *Engine) writeFeedbackFM(oper uint8) {
	if operatorType[oper] == 1 {
		return
	}

	var value byte
	value |= e.operatorParams[oper][ParamFeedback] << 1
	if e.operatorParams[oper][ParamFM] == 0 {
		value |= 1
	}

	e.write(0xC0+operatorVoice[oper], value)
}

func (e *Engine) writeAttackDecay(oper uint8) {
	var value byte
	value |= e.operatorParams[oper][ParamAttack] << 4
	value |= e.operatorParams[oper][ParamDecay] & 0x0F

	e.write(0x60+operatorOffset[oper], value)
}

func (e *Engine) writeSustainRelease(oper uint8) {
	var value byte
	value |= e.operatorParams[oper][ParamSustain] << 4
	value |= e.operatorParams[oper][ParamRelease] & 0x0F

	e.write(0x80+operatorOffset[oper], value)
}

func (e *Engine) writeTremoloVibratoSustainingKeyScaleRateFreqMulti(oper uint8) {
	var value byte
	if e.operatorParams[oper][ParamAM] != 0 {
		value |= 0x80
	}
	if e.operatorParams[oper][ParamVib] != 0 {
		value |= 0x40
	}
	if e.operatorParams[oper][ParamSustaining] != 0 {
		value |= 0x20
	}
	if e.operatorParams[oper][ParamKeyScaleRate] != 0 {
		value |= 0x10
	}
	value |= e.operatorParams[oper][ParamFreqMulti] & 0x0F

	e.write(0x20+operatorOffset[oper], value)
}

func (e *Engine) writeTremoloVibratoDepthPercMode() {
	var value byte
	if e.tremoloDepth {
		value |= 0x80
	}
	if e.vibratoDepth {
		value |= 0x40
	}
	if e.percussionMode {
		value |= 0x20
	}
	value |= e.percussionBits

	e.write(0xBD, value)
}

func (e *Engine) writeWaveSelect(oper uint8) {
	var wave byte
	if e.enableWaveSelect {
		wave = e.operatorParams[oper][ParamWaveSelect] & 0x03
	}

	e.write(0xE0+operatorOffset[oper], wave)
}

func (e *Engine) writeAllParams(oper uint8) {
	e.writeTremoloVibratoDepthPercMode()
	e.writeKeySplit()
	e.writeKeyScaleLevelVolume(oper)
	e.writeFeedbackFM(oper)
	e.writeAttackDecay(oper)
	e.writeSustainRelease(oper)
	e.writeTremoloVibratoSustainingKeyScaleRateFreqMulti(oper)
	e.writeWaveSelect(oper)
}

func (e *Engine) initOperatorParams() {
	for i := 0; i < OperatorCount; i++ {
		p := pianoParams[operatorType[i]]
		e.setOperatorParams(uint8(i), p[:13], uint8(p[13]))
	}

	if e.percussionMode {
		e.setOperatorParams(12, baseDrumParams[0][:13], uint8(baseDrumParams[0][13]))
		e.setOperatorParams(15, baseDrumParams[1][:13], uint8(baseDrumParams[1][13]))
		e.setOperatorParams(16, snareDrumParams[:13], uint8(snareDrumParams[13]))
		e.setOperatorParams(14, tomParams[:13], uint8(tomParams[13]))
		e.setOperatorParams(17, cymbalParams[:13], uint8(cymbalParams[13]))
		e.setOperatorParams(13, hihatParams[:13], uint8(hihatParams[13]))
	}
}

func (e *Engine) initOperatorVolumes() {
	for i := range e.operatorVolume {
		e.operatorVolume[i] = MaxVolume
	}
}

func (e *Engine) setOperatorParams(oper uint8, params []uint16, wave uint8) {
	for i := 0; i < ParamCount-1; i++ {
		e.operatorParams[oper][i] = byte(params[i])
	}
	e.operatorParams[oper][ParamCount-1] = wave & 0x03

	e.writeAllParams(oper)
}

func (e *Engine) voiceOff(voice int) {
	e.write(0xA0+byte(voice), 0)
	e.write(0xB0+byte(voice), 0)
}

func calcFreq(deltaDemiToneNum, deltaDemiToneDenom int32) int32 {
	freq := (deltaDemiToneDenom*100 + 6*deltaDemiToneNum) * 52088
	freq /= deltaDemiToneDenom * 2500

	return (freq * 147456) / 111875
}

func setFreqs(freqs *[HalfToneCount]uint16, num, denom int32) {
	val := calcFreq(num, denom)

	freqs[0] = uint16((4 + val) >> 3)

	for i := 1; i < HalfToneCount; i++ {
		val = (val * 106) / 100
		freqs[i] = uint16((4 + val) >> 3)
	}
}

func (e *Engine) initFreqs() {
	const numStep = 100 / PitchStepCount

	for i := 0; i < PitchStepCount; i++ {
		setFreqs(&e.freqs[i], int32(i*numStep), 100)
	}

	e.resetFreqs()
}

func (e *Engine) resetFreqs() {
	for i := range e.freqRow {
		e.freqRow[i] = 0
		e.halfToneOffset[i] = 0
	}
}

func (e *Engine) changePitch(voice uint8, pitchBend uint16) {
	amount := (int32(pitchBend) - MidPitch) * e.pitchRangeStep / MidPitch

	var full, frac int32
	if amount >= 0 {
		full = amount / PitchStepCount
		frac = amount % PitchStepCount
	} else {
		a := PitchStepCount - 1 - amount
		full = -(a / PitchStepCount)
		frac = (a - PitchStepCount + 1) % PitchStepCount
		if frac != 0 {
			frac = PitchStepCount - frac
		}
	}

	e.halfToneOffset[voice] = full
	e.freqRow[voice] = int(frac)
}

func (e *Engine) setFreq(voice uint8, note uint8, on bool) {
	e.voiceOn[voice] = on
	e.voiceNote[voice] = note

	n := int32(note) + e.halfToneOffset[voice]
	if n < 0 {
		n = 0
	}
	if n > NoteCount-1 {
		n = NoteCount - 1
	}

	freq := e.freqs[e.freqRow[voice]][n%HalfToneCount]

	var value byte
	if on {
		value |= 0x20
	}
	value |= byte((n/HalfToneCount)<<2) | byte((freq>>8)&0x03)

	e.write(0xA0+voice, byte(freq))
	e.write(0xB0+voice, value)
}
