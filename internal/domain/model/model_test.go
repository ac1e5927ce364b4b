package model_test

import (
	"errors"
	"testing"

	"github.com/okian/echelon/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestParseGameType(t *testing.T) {
	Convey("Given game type strings", t, func() {
		Convey("When parsing known values with noise", func() {
			g, err := model.ParseGameType("  Reaction_Grid ")

			Convey("Then they normalize to the known type", func() {
				So(err, ShouldBeNil)
				So(g, ShouldEqual, model.GameReactionGrid)
			})
		})

		Convey("When parsing every listed type", func() {
			Convey("Then each is valid", func() {
				for _, g := range model.GameTypes {
					parsed, err := model.ParseGameType(string(g))
					So(err, ShouldBeNil)
					So(parsed, ShouldEqual, g)
				}
			})
		})

		Convey("When parsing an unknown value", func() {
			_, err := model.ParseGameType("chess")

			Convey("Then it is a validation failure", func() {
				So(errors.Is(err, model.ErrValidation), ShouldBeTrue)
				So(err.Error(), ShouldContainSubstring, "chess")
			})
		})
	})
}

func TestPerformanceValidate(t *testing.T) {
	Convey("Given performance snapshots", t, func() {
		Convey("When the snapshot is ordinary", func() {
			p := model.Performance{Accuracy: 80, Level: 2, ReactionTime: 310, PerfectRounds: 3, TotalRounds: 5}

			Convey("Then it validates", func() {
				So(p.Validate(), ShouldBeNil)
			})
		})

		Convey("When accuracy exceeds 100", func() {
			p := model.Performance{Accuracy: 150}

			Convey("Then it is still accepted", func() {
				So(p.Validate(), ShouldBeNil)
			})
		})

		Convey("When any counter is negative", func() {
			cases := []model.Performance{
				{Accuracy: -1},
				{Level: -1},
				{ReactionTime: -5},
				{PerfectRounds: -1},
				{TotalRounds: -2},
			}

			Convey("Then each is rejected", func() {
				for _, p := range cases {
					So(errors.Is(p.Validate(), model.ErrValidation), ShouldBeTrue)
				}
			})
		})
	})
}

func TestUpsertOutcome(t *testing.T) {
	Convey("Given upsert outcomes", t, func() {
		Convey("Then names and change flags match", func() {
			So(model.UpsertInserted.String(), ShouldEqual, "inserted")
			So(model.UpsertImproved.String(), ShouldEqual, "improved")
			So(model.UpsertUnchanged.String(), ShouldEqual, "unchanged")
			So(model.UpsertInserted.Changed(), ShouldBeTrue)
			So(model.UpsertImproved.Changed(), ShouldBeTrue)
			So(model.UpsertUnchanged.Changed(), ShouldBeFalse)
		})
	})
}

func TestBoardKey(t *testing.T) {
	Convey("Given a leaderboard entry", t, func() {
		e := model.LeaderboardEntry{DrillID: "d-1", GameType: model.GameStaminaRush}

		Convey("Then its key names the drill and game type", func() {
			So(e.Key(), ShouldResemble, model.BoardKey{DrillID: "d-1", GameType: model.GameStaminaRush})
			So(e.Key().String(), ShouldEqual, "d-1:stamina_rush")
		})
	})
}
