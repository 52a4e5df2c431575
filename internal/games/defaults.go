package games

const (
	hoyolabProfileURL = "https://bbs-api-os.hoyolab.com/game_record/card/wapi/getGameRecordCard"

	// CodeEventUnavailable is returned while a sign-in event is briefly not
	// accepting submissions.
	CodeEventUnavailable = -500012
	CodeAlreadySigned    = -5003
	CodeNotLoggedIn      = -100
)

func defaultCodes(protocol string) Codes {
	switch protocol {
	case ProtocolSKPort:
		return Codes{
			AlreadySigned: []int{10001},
			Retryable:     []int{CodeEventUnavailable},
			StaleSession:  []int{10000, 10002},
		}
	default:
		return Codes{
			AlreadySigned: []int{CodeAlreadySigned},
			Retryable:     []int{CodeEventUnavailable},
			StaleSession:  []int{CodeNotLoggedIn, 10001},
		}
	}
}

func defaultConfigs() []GameConfig {
	return []GameConfig{
		{
			ID:             "genshin",
			DisplayName:    "Genshin Impact",
			Protocol:       ProtocolHoyolab,
			Enabled:        boolPtr(true),
			ActID:          "e202102251931481",
			GameID:         2,
			SignGameHeader: "hk4e",
			URLs: URLs{
				Info:    "https://sg-hk4e-api.hoyolab.com/event/sol/info",
				Home:    "https://sg-hk4e-api.hoyolab.com/event/sol/home",
				Sign:    "https://sg-hk4e-api.hoyolab.com/event/sol/sign",
				Profile: hoyolabProfileURL,
			},
			SuccessMessage: "Congratulations, Traveler! You have successfully checked in today~",
			SignedMessage:  "Traveler, you've already checked in today~",
			AuthorName:     "Paimon",
			IconURL:        "https://fastcdn.hoyoverse.com/static-resource-v2/2024/04/12/b700cce2ac4c68a520b15cafa86a03f0_2812765778371293568.png",
		},
		{
			ID:             "honkai",
			DisplayName:    "Honkai Impact 3rd",
			Protocol:       ProtocolHoyolab,
			Enabled:        boolPtr(true),
			ActID:          "e202110291205111",
			GameID:         1,
			SignGameHeader: "honkai",
			URLs: URLs{
				Info:    "https://sg-public-api.hoyolab.com/event/mani/info",
				Home:    "https://sg-public-api.hoyolab.com/event/mani/home",
				Sign:    "https://sg-public-api.hoyolab.com/event/mani/sign",
				Profile: hoyolabProfileURL,
			},
			SuccessMessage: "You have successfully checked in today, Captain~",
			SignedMessage:  "You've already checked in today, Captain~",
			AuthorName:     "Kiana",
			IconURL:        "https://fastcdn.hoyoverse.com/static-resource-v2/2024/02/29/3d96534fd7a35a725f7884e6137346d1_3942255444511793944.png",
		},
		{
			ID:             "starrail",
			DisplayName:    "Honkai: Star Rail",
			Protocol:       ProtocolHoyolab,
			Enabled:        boolPtr(true),
			ActID:          "e202303301540311",
			GameID:         6,
			SignGameHeader: "hkrpg",
			URLs: URLs{
				Info:    "https://sg-public-api.hoyolab.com/event/luna/os/info",
				Home:    "https://sg-public-api.hoyolab.com/event/luna/os/home",
				Sign:    "https://sg-public-api.hoyolab.com/event/luna/os/sign",
				Profile: hoyolabProfileURL,
			},
			SuccessMessage: "You have successfully checked in today, Trailblazer~",
			SignedMessage:  "You've already checked in today, Trailblazer~",
			AuthorName:     "PomPom",
			IconURL:        "https://fastcdn.hoyoverse.com/static-resource-v2/2024/04/12/74330de1ee71ada37bbba7b72775c9d3_1883015313866544428.png",
		},
		{
			ID:             "zenless",
			DisplayName:    "Zenless Zone Zero",
			Protocol:       ProtocolHoyolab,
			Enabled:        boolPtr(true),
			ActID:          "e202406031448091",
			GameID:         8,
			SignGameHeader: "zzz",
			URLs: URLs{
				Info:    "https://sg-public-api.hoyolab.com/event/luna/zzz/os/info",
				Home:    "https://sg-public-api.hoyolab.com/event/luna/zzz/os/home",
				Sign:    "https://sg-public-api.hoyolab.com/event/luna/zzz/os/sign",
				Profile: hoyolabProfileURL,
			},
			SuccessMessage: "Congratulations Proxy! You have successfully checked in today!~",
			SignedMessage:  "You have already checked in today, Proxy!~",
			AuthorName:     "Eous",
			IconURL:        "https://hyl-static-res-prod.hoyolab.com/communityweb/business/nap.png",
		},
		{
			ID:          "endfield",
			DisplayName: "Arknights: Endfield",
			Protocol:    ProtocolSKPort,
			Enabled:     boolPtr(true),
			URLs: URLs{
				Info: "https://zonai.skport.com/web/v1/game/endfield/attendance",
				Home: "https://zonai.skport.com/web/v1/game/endfield/attendance",
				Sign: "https://zonai.skport.com/web/v1/game/endfield/attendance",
			},
			OAuth: &OAuth{
				BasicURL: "https://as.gryphline.com/user/info/v1/basic",
				GrantURL: "https://as.gryphline.com/user/oauth2/v2/grant",
				CredURL:  "https://zonai.skport.com/web/v1/user/auth/generate_cred_by_code",
				AppCode:  "6eb76d4e13aa36e6",
			},
			SuccessMessage: "Attendance claimed!",
			SignedMessage:  "Already checked in today",
			AuthorName:     "SKPort",
		},
	}
}

func boolPtr(v bool) *bool {
	return &v
}
