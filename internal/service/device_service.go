package service

import (
	"strings"

	"github.com/wenwu/saas-platform/esim-storefront/internal/models"
)

// minAndroidESIMAPILevel is Android 9
const minAndroidESIMAPILevel = 28

// DeviceService answers whether a device can install an eSIM
type DeviceService struct{}

func NewDeviceService() *DeviceService {
	return &DeviceService{}
}

// Check reports eSIM support for an OS and, on Android, its API level
func (s *DeviceService) Check(os string, apiLevel int) (*models.DeviceInfo, error) {
	switch strings.ToLower(strings.TrimSpace(os)) {
	case models.DeviceOSIOS:
		return &models.DeviceInfo{Model: "iPhone", OS: models.DeviceOSIOS, ESIMSupported: true}, nil
	case models.DeviceOSAndroid:
		return &models.DeviceInfo{
			Model:         "Android Device",
			OS:            models.DeviceOSAndroid,
			ESIMSupported: apiLevel >= minAndroidESIMAPILevel,
		}, nil
	default:
		return nil, ErrUnsupportedOS
	}
}
