//go:build cgo && aom
// +build cgo,aom

package av1

/*
#cgo pkg-config: aom
#include <aom/aom_encoder.h>
#include <aom/aomcx.h>
#include <stdlib.h>
#include <string.h>

static aom_codec_iface_t* get_av1_interface() {
    return aom_codec_av1_cx();
}

static aom_codec_err_t init_encoder(aom_codec_ctx_t *ctx, aom_codec_iface_t *iface,
                                    aom_codec_enc_cfg_t *cfg) {
    return aom_codec_enc_init_ver(ctx, iface, cfg, 0, AOM_ENCODER_ABI_VERSION);
}

static int is_frame_packet(const aom_codec_cx_pkt_t *pkt) {
    return pkt->kind == AOM_CODEC_CX_FRAME_PKT;
}

static void* get_frame_buf(const aom_codec_cx_pkt_t *pkt) {
    return pkt->data.frame.buf;
}

static size_t get_frame_sz(const aom_codec_cx_pkt_t *pkt) {
    return pkt->data.frame.sz;
}

static int is_keyframe(const aom_codec_cx_pkt_t *pkt) {
    return (pkt->data.frame.flags & AOM_FRAME_IS_KEY) != 0;
}

static aom_codec_pts_t get_frame_pts(const aom_codec_cx_pkt_t *pkt) {
    return pkt->data.frame.pts;
}

static unsigned char* get_plane(aom_image_t *img, int plane) {
    return img->planes[plane];
}

static int get_plane_stride(aom_image_t *img, int plane) {
    return img->stride[plane];
}

// aom_codec_control is a variadic macro.
static aom_codec_err_t set_cpu_used(aom_codec_ctx_t *ctx, int value) {
    return aom_codec_control(ctx, AOME_SET_CPUUSED, value);
}

static aom_codec_err_t set_cq_level(aom_codec_ctx_t *ctx, unsigned int value) {
    return aom_codec_control(ctx, AOME_SET_CQ_LEVEL, value);
}

static aom_codec_err_t set_tile_columns(aom_codec_ctx_t *ctx, unsigned int value) {
    return aom_codec_control(ctx, AV1E_SET_TILE_COLUMNS, value);
}

static aom_codec_err_t set_row_mt(aom_codec_ctx_t *ctx, unsigned int value) {
    return aom_codec_control(ctx, AV1E_SET_ROW_MT, value);
}
*/
import "C"

import (
	"image"
	"unsafe"

	errors "golang.org/x/xerrors"

	"github.com/lanikai/alohacam/internal/codec"
)

const available = true

func init() {
	codec.RegisterBackend(Name, New)
}

// encoder is a libaom encoder context. Not safe for concurrent use.
type encoder struct {
	ctx *C.aom_codec_ctx_t
	cfg *C.aom_codec_enc_cfg_t
	img *C.aom_image_t

	width  int
	height int
	chroma codec.ChromaSampling

	queue []codec.BackendPacket
}

// New creates a libaom encoder context for p.
func New(p codec.Params) (codec.Backend, error) {
	e := &encoder{
		width:  p.Width,
		height: p.Height,
		chroma: p.Chroma,
	}

	e.ctx = (*C.aom_codec_ctx_t)(C.calloc(1, C.sizeof_aom_codec_ctx_t))
	e.cfg = (*C.aom_codec_enc_cfg_t)(C.calloc(1, C.sizeof_aom_codec_enc_cfg_t))
	e.img = (*C.aom_image_t)(C.calloc(1, C.sizeof_aom_image_t))
	if e.ctx == nil || e.cfg == nil || e.img == nil {
		e.free()
		return nil, errors.New("av1: out of memory")
	}

	iface := C.get_av1_interface()

	usage := C.uint(C.AOM_USAGE_GOOD_QUALITY)
	if p.LowLatency {
		usage = C.AOM_USAGE_REALTIME
	}
	if res := C.aom_codec_enc_config_default(iface, e.cfg, usage); res != C.AOM_CODEC_OK {
		e.free()
		return nil, errors.Errorf("av1: default config: %s", errString(res))
	}

	e.cfg.g_w = C.uint(p.Width)
	e.cfg.g_h = C.uint(p.Height)
	e.cfg.g_bit_depth = C.AOM_BITS_8
	e.cfg.g_input_bit_depth = 8
	e.cfg.g_timebase.num = 1
	e.cfg.g_timebase.den = C.int(max(p.FrameRate, 1))
	if p.Threads > 0 {
		e.cfg.g_threads = C.uint(p.Threads)
	}
	if p.ErrorResilient {
		e.cfg.g_error_resilient = C.AOM_ERROR_RESILIENT_DEFAULT
	}
	if p.LowLatency {
		e.cfg.g_lag_in_frames = 0
	}

	imgFmt := C.aom_img_fmt_t(C.AOM_IMG_FMT_I444)
	e.cfg.g_profile = 1
	if p.Chroma == codec.Chroma420 {
		imgFmt = C.AOM_IMG_FMT_I420
		e.cfg.g_profile = 0
	}

	e.cfg.kf_mode = C.AOM_KF_AUTO
	e.cfg.kf_min_dist = C.uint(p.MinKeyInterval)
	e.cfg.kf_max_dist = C.uint(p.MaxKeyInterval)

	e.cfg.rc_min_quantizer = C.uint(quantizer(p.MinQuantizer))
	if p.Bitrate > 0 {
		e.cfg.rc_end_usage = C.AOM_CBR
		e.cfg.rc_target_bitrate = C.uint(p.Bitrate)
		e.cfg.rc_max_quantizer = 63
	} else {
		e.cfg.rc_end_usage = C.AOM_Q
		e.cfg.rc_max_quantizer = C.uint(quantizer(p.Quantizer))
	}

	if res := C.init_encoder(e.ctx, iface, e.cfg); res != C.AOM_CODEC_OK {
		e.free()
		return nil, errors.Errorf("av1: init: %s", errString(res))
	}

	speed := p.SpeedPreset
	if !p.LowLatency && speed > 6 {
		speed = 6
	}
	controls := []control{
		{"cpu-used", C.set_cpu_used(e.ctx, C.int(speed))},
		{"tile-columns", C.set_tile_columns(e.ctx, C.uint(tileColumnsLog2(p.Tiles)))},
		{"row-mt", C.set_row_mt(e.ctx, 1)},
	}
	if p.Bitrate == 0 {
		controls = append(controls, control{"cq-level", C.set_cq_level(e.ctx, C.uint(quantizer(p.Quantizer)))})
	}
	for _, c := range controls {
		if c.res != C.AOM_CODEC_OK {
			log.Warn("av1: control %s: %s", c.name, errString(c.res))
		}
	}

	if C.aom_img_alloc(e.img, imgFmt, C.uint(p.Width), C.uint(p.Height), 32) == nil {
		C.aom_codec_destroy(e.ctx)
		e.free()
		return nil, errors.New("av1: allocate image")
	}

	log.Debug("libaom encoder %dx%d %s, q [%d,%d], key interval [%d,%d]",
		p.Width, p.Height, p.Chroma, e.cfg.rc_min_quantizer, e.cfg.rc_max_quantizer,
		p.MinKeyInterval, p.MaxKeyInterval)
	return e, nil
}

type control struct {
	name string
	res  C.aom_codec_err_t
}

func (e *encoder) SendFrame(pic *image.YCbCr, pts int64, forceKey bool) error {
	if e.ctx == nil {
		return errors.New("av1: encoder closed")
	}
	if len(e.queue) >= maxQueued {
		return codec.ErrQueueFull
	}

	cw, ch := e.width, e.height
	if e.chroma == codec.Chroma420 {
		cw, ch = (e.width+1)/2, (e.height+1)/2
	}
	e.copyPlane(0, pic.Y, pic.YStride, e.width, e.height)
	e.copyPlane(1, pic.Cb, pic.CStride, cw, ch)
	e.copyPlane(2, pic.Cr, pic.CStride, cw, ch)

	var flags C.aom_enc_frame_flags_t
	if forceKey {
		flags = C.AOM_EFLAG_FORCE_KF
	}

	if res := C.aom_codec_encode(e.ctx, e.img, C.aom_codec_pts_t(pts), 1, flags); res != C.AOM_CODEC_OK {
		return errors.Errorf("av1: encode: %s", errString(res))
	}
	e.drain()
	return nil
}

func (e *encoder) copyPlane(plane int, src []byte, srcStride, w, h int) {
	stride := int(C.get_plane_stride(e.img, C.int(plane)))
	dst := unsafe.Slice((*byte)(unsafe.Pointer(C.get_plane(e.img, C.int(plane)))), stride*h)
	for y := 0; y < h; y++ {
		copy(dst[y*stride:y*stride+w], src[y*srcStride:y*srcStride+w])
	}
}

func (e *encoder) drain() {
	var iter C.aom_codec_iter_t
	for {
		pkt := C.aom_codec_get_cx_data(e.ctx, &iter)
		if pkt == nil {
			return
		}
		if C.is_frame_packet(pkt) == 0 {
			continue
		}
		e.queue = append(e.queue, codec.BackendPacket{
			Data: C.GoBytes(C.get_frame_buf(pkt), C.int(C.get_frame_sz(pkt))),
			PTS:  int64(C.get_frame_pts(pkt)),
			Key:  C.is_keyframe(pkt) != 0,
		})
	}
}

func (e *encoder) ReceivePacket() (codec.BackendPacket, error) {
	if len(e.queue) == 0 {
		return codec.BackendPacket{}, codec.ErrNeedMoreData
	}
	p := e.queue[0]
	e.queue[0] = codec.BackendPacket{}
	e.queue = e.queue[1:]
	return p, nil
}

func (e *encoder) Close() error {
	if e.ctx == nil {
		return nil
	}
	C.aom_codec_destroy(e.ctx)
	C.aom_img_free(e.img)
	e.free()
	e.queue = nil
	return nil
}

func (e *encoder) free() {
	if e.img != nil {
		C.free(unsafe.Pointer(e.img))
		e.img = nil
	}
	if e.ctx != nil {
		C.free(unsafe.Pointer(e.ctx))
		e.ctx = nil
	}
	if e.cfg != nil {
		C.free(unsafe.Pointer(e.cfg))
		e.cfg = nil
	}
}

func errString(res C.aom_codec_err_t) string {
	return C.GoString(C.aom_codec_err_to_string(res))
}
